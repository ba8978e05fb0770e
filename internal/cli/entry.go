package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/mdrepo/internal/repository"
)

// EntryInfo describes one entry.
type EntryInfo struct {
	URI          string              `json:"uri"`
	Context      string              `json:"context"`
	ID           string              `json:"id"`
	EntryType    string              `json:"entry_type"`
	GraphType    string              `json:"graph_type"`
	ResourceType string              `json:"resource_type"`
	Resource     string              `json:"resource"`
	Metadata     string              `json:"metadata,omitempty"`
	Created      string              `json:"created,omitempty"`
	Modified     string              `json:"modified,omitempty"`
	Creator      string              `json:"creator,omitempty"`
	Filesize     int64               `json:"filesize,omitempty"`
	ACL          map[string][]string `json:"acl,omitempty"`
}

func describeEntry(e *repository.Entry) EntryInfo {
	info := EntryInfo{
		URI:          e.URI(),
		Context:      e.ContextID(),
		ID:           e.ID(),
		EntryType:    e.EntryType().String(),
		GraphType:    e.GraphType().String(),
		ResourceType: e.ResourceType().String(),
		Resource:     e.ResourceURI(),
		Metadata:     e.ExternalMetadataURI(),
		Created:      formatTime(e.Created()),
		Modified:     formatTime(e.Modified()),
		Creator:      e.Creator(),
	}
	if n := e.Filesize(); n > 0 {
		info.Filesize = n
	}
	if e.HasACL() {
		info.ACL = make(map[string][]string)
		for _, p := range repository.AccessProperties {
			if ps := e.AllowedPrincipalsFor(p); len(ps) > 0 {
				info.ACL[p.String()] = ps
			}
		}
	}
	return info
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// NewEntryCommand creates the entry command group.
func NewEntryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entry",
		Short: "Create, inspect and remove entries",
	}
	cmd.AddCommand(newEntryCreateCommand(rootOpts))
	cmd.AddCommand(newEntryRemoveCommand(rootOpts))
	cmd.AddCommand(newEntryShowCommand(rootOpts))
	cmd.AddCommand(newEntryWriteCommand(rootOpts))
	return cmd
}

// EntryCreateOptions holds flags for entry create.
type EntryCreateOptions struct {
	*RootOptions
	Context      string
	ID           string
	Type         string
	GraphType    string
	ResourceType string
	Resource     string
	Metadata     string
	List         string
}

func newEntryCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EntryCreateOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an entry in a context",
		Long: `Create an entry. Local entries get a repository-held resource of the
given graph type; Link and LinkReference entries point at --resource,
Reference and LinkReference entries at --metadata.

With --list the entry is created as a child of that list and inherits
its ACL.

Examples:
  mdrepo entry create --context docs
  mdrepo entry create --context docs --graph-type list
  mdrepo entry create --context docs --type link --resource http://example.com/a.pdf
  mdrepo entry create --context docs --list http://localhost:8080/store/docs/resource/1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEntryCreate(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Context, "context", "", "context id or name (required)")
	_ = cmd.MarkFlagRequired("context")
	cmd.Flags().StringVar(&opts.ID, "id", "", "entry id (minted when empty)")
	cmd.Flags().StringVar(&opts.Type, "type", "local", "entry type (local|link|reference|linkreference)")
	cmd.Flags().StringVar(&opts.GraphType, "graph-type", "none", "graph type (none|list|resultlist|string|graph|...)")
	cmd.Flags().StringVar(&opts.ResourceType, "resource-type", "", "resource type (informationresource|resolvableinformationresource|namedresource|unknown)")
	cmd.Flags().StringVar(&opts.Resource, "resource", "", "resource URI of link entries")
	cmd.Flags().StringVar(&opts.Metadata, "metadata", "", "external metadata URI of reference entries")
	cmd.Flags().StringVar(&opts.List, "list", "", "list to create the entry in")
	return cmd
}

func runEntryCreate(opts *EntryCreateOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	n := repository.NewEntry{
		ID:                  opts.ID,
		ResourceURI:         opts.Resource,
		ExternalMetadataURI: opts.Metadata,
		List:                opts.List,
	}
	var err error
	if n.EntryType, err = repository.ParseEntryType(opts.Type); err != nil {
		return badArgument(formatter, err)
	}
	if n.GraphType, err = repository.ParseGraphType(opts.GraphType); err != nil {
		return badArgument(formatter, err)
	}
	if opts.ResourceType != "" {
		if n.ResourceType, err = repository.ParseResourceType(opts.ResourceType); err != nil {
			return badArgument(formatter, err)
		}
	}

	e, err := opts.open(formatter)
	if err != nil {
		return err
	}
	defer e.Close()

	c, err := contextOf(e.repo, opts.Context)
	if err != nil {
		return fail(formatter, "failed to open context", err)
	}
	entry, err := c.Create(e.session, n)
	if err != nil {
		return fail(formatter, "failed to create entry", err)
	}

	info := describeEntry(entry)
	if formatter.Format == "json" {
		return formatter.Success(info)
	}
	fmt.Fprintf(formatter.Writer, "✓ Entry created: %s\n", info.URI)
	formatter.VerboseLog("resource %s (%s)", info.Resource, info.GraphType)
	return nil
}

func newEntryRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <entry-uri>",
		Short: "Remove an entry",
		Long: `Remove an entry with its metadata, ACL and resource, detach it from
every list, and give back its payload bytes to the context quota.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			e, err := opts.open(formatter)
			if err != nil {
				return err
			}
			defer e.Close()

			entry, err := e.repo.Entry(args[0])
			if err != nil {
				return fail(formatter, "failed to load entry", err)
			}
			if err := entry.Context().Remove(e.session, entry.URI()); err != nil {
				return fail(formatter, "failed to remove entry", err)
			}
			if formatter.Format == "json" {
				return formatter.Success(map[string]string{"removed": entry.URI()})
			}
			fmt.Fprintf(formatter.Writer, "✓ Entry removed: %s\n", entry.URI())
			return nil
		},
	}
}

func newEntryShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <uri>",
		Short: "Show an entry",
		Long:  `Show an entry by its entry, resource or metadata URI. Needs ReadMetadata.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			e, err := opts.open(formatter)
			if err != nil {
				return err
			}
			defer e.Close()

			entry, err := e.repo.EntryByURI(args[0])
			if err != nil {
				return fail(formatter, "failed to load entry", err)
			}
			if err := e.repo.Authorize(e.session, entry, repository.ReadMetadata); err != nil {
				return fail(formatter, "failed to show entry", err)
			}

			info := describeEntry(entry)
			if formatter.Format == "json" {
				return formatter.Success(info)
			}
			printEntry(formatter.Writer, info)
			return nil
		},
	}
}

func printEntry(w io.Writer, info EntryInfo) {
	fmt.Fprintf(w, "URI:        %s\n", info.URI)
	fmt.Fprintf(w, "Context:    %s\n", info.Context)
	fmt.Fprintf(w, "Type:       %s / %s / %s\n", info.EntryType, info.GraphType, info.ResourceType)
	fmt.Fprintf(w, "Resource:   %s\n", info.Resource)
	if info.Metadata != "" {
		fmt.Fprintf(w, "Metadata:   %s\n", info.Metadata)
	}
	if info.Creator != "" {
		fmt.Fprintf(w, "Creator:    %s\n", info.Creator)
	}
	if info.Created != "" {
		fmt.Fprintf(w, "Created:    %s\n", info.Created)
	}
	if info.Modified != "" {
		fmt.Fprintf(w, "Modified:   %s\n", info.Modified)
	}
	if info.Filesize > 0 {
		fmt.Fprintf(w, "Size:       %d bytes\n", info.Filesize)
	}
	for _, p := range repository.AccessProperties {
		if ps, ok := info.ACL[p.String()]; ok {
			fmt.Fprintf(w, "%-13s %s\n", p.String()+":", strings.Join(ps, ", "))
		}
	}
}

func newEntryWriteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "write <entry-uri> [file]",
		Short: "Write the payload of a data entry",
		Long: `Replace the payload of a Local data entry with the contents of file,
or of stdin when no file is given. The write is refused when it would
overflow the context quota.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)

			var data []byte
			var err error
			if len(args) == 2 {
				data, err = os.ReadFile(args[1])
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return badArgument(formatter, err)
			}

			e, err := opts.open(formatter)
			if err != nil {
				return err
			}
			defer e.Close()

			entry, err := e.repo.Entry(args[0])
			if err != nil {
				return fail(formatter, "failed to load entry", err)
			}
			d, ok := entry.Resource().(*repository.Data)
			if !ok {
				return badArgument(formatter, fmt.Errorf("%s has no binary payload (%s %s)",
					entry.URI(), entry.EntryType(), entry.GraphType()))
			}
			if err := d.Write(e.session, data); err != nil {
				return fail(formatter, "failed to write payload", err)
			}
			if formatter.Format == "json" {
				return formatter.Success(map[string]any{"entry": entry.URI(), "bytes": len(data)})
			}
			fmt.Fprintf(formatter.Writer, "✓ Wrote %d byte(s) to %s\n", len(data), entry.URI())
			return nil
		},
	}
}

// badArgument reports an invalid argument as a command error.
func badArgument(f *OutputFormatter, err error) error {
	_ = f.Error(ErrCodeGeneric, err.Error(), nil)
	return WrapExitError(ExitCommandError, "invalid argument", err)
}
