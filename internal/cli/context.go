package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/mdrepo/internal/config"
	"github.com/roach88/mdrepo/internal/repository"
)

// ContextInfo describes one context.
type ContextInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	URI       string `json:"uri"`
	Entries   int    `json:"entries"`
	Quota     string `json:"quota,omitempty"`
	FillLevel int64  `json:"fill_level"`
}

// NewContextCommand creates the context command group.
func NewContextCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Create and list contexts",
	}
	cmd.AddCommand(newContextCreateCommand(rootOpts))
	cmd.AddCommand(newContextListCommand(rootOpts))
	return cmd
}

func newContextCreateCommand(opts *RootOptions) *cobra.Command {
	var id, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a context",
		Long: `Create a context. Without --id the next free numeric id is minted.
--name registers an alias other commands accept in place of the id.

Examples:
  mdrepo context create
  mdrepo context create --id docs --name "Documents"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			e, err := opts.open(formatter)
			if err != nil {
				return err
			}
			defer e.Close()

			c, err := e.repo.CreateContext(e.session, id, name)
			if err != nil {
				return fail(formatter, "failed to create context", err)
			}
			info, err := describeContext(c)
			if err != nil {
				return fail(formatter, "failed to read context", err)
			}
			if formatter.Format == "json" {
				return formatter.Success(info)
			}
			fmt.Fprintf(formatter.Writer, "✓ Context %s created: %s\n", info.ID, info.URI)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "context id (minted when empty)")
	cmd.Flags().StringVar(&name, "name", "", "context alias")
	return cmd
}

func newContextListCommand(opts *RootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List contexts",
		Long: `List contexts with their entry count, quota and fill level. System
contexts (names starting with "_") are shown with --all.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			e, err := opts.open(formatter)
			if err != nil {
				return err
			}
			defer e.Close()

			ids, err := e.repo.ContextIDs()
			if err != nil {
				return fail(formatter, "failed to list contexts", err)
			}
			infos := make([]ContextInfo, 0, len(ids))
			for _, id := range ids {
				if !all && strings.HasPrefix(id, "_") {
					continue
				}
				c, err := e.repo.Context(id)
				if err != nil {
					return fail(formatter, "failed to open context", err)
				}
				info, err := describeContext(c)
				if err != nil {
					return fail(formatter, "failed to read context", err)
				}
				infos = append(infos, info)
			}

			if formatter.Format == "json" {
				return formatter.Success(infos)
			}
			if len(infos) == 0 {
				fmt.Fprintln(formatter.Writer, "No contexts.")
				return nil
			}
			for _, info := range infos {
				name := info.Name
				if name == "" {
					name = "-"
				}
				fmt.Fprintf(formatter.Writer, "%-12s %-16s %6d entries  %s / %s\n",
					info.ID, name, info.Entries, config.FormatSize(info.FillLevel), info.Quota)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include system contexts")
	return cmd
}

func describeContext(c *repository.Context) (ContextInfo, error) {
	info := ContextInfo{ID: c.ID(), URI: c.URI()}
	var err error
	if info.Name, err = c.Name(); err != nil {
		return info, err
	}
	entries, err := c.Entries()
	if err != nil {
		return info, err
	}
	info.Entries = len(entries)
	quota, err := c.Quota()
	if err != nil {
		return info, err
	}
	info.Quota = config.FormatSize(quota)
	if info.FillLevel, err = c.FillLevel(); err != nil {
		return info, err
	}
	return info, nil
}
