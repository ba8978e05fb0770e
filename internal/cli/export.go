package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/mdrepo/internal/repository"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Context string
	Graph   string
	Output  string
}

// ExportResult summarizes an export.
type ExportResult struct {
	Statements int    `json:"statements"`
	Digest     string `json:"digest"`
	Output     string `json:"output,omitempty"`
	NQuads     string `json:"nquads,omitempty"`
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Dump statements as canonical N-Quads",
		Long: `Dump the statements of the repository as sorted N-Quads with a
digest of the statement set. Two repositories with the same statements
produce the same bytes and digest. Only admin and members of admins
may export.

--graph keeps graphs whose URI relative to the base URI matches a
doublestar pattern.

Examples:
  mdrepo export -o dump.nq
  mdrepo export --context docs
  mdrepo export --graph "*/entry/**" --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Context, "context", "", "export one context")
	cmd.Flags().StringVar(&opts.Graph, "graph", "", "graph URI pattern, relative to the base URI")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write N-Quads to this file instead of stdout")

	return cmd
}

func runExport(opts *ExportOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	e, err := opts.open(formatter)
	if err != nil {
		return err
	}
	defer e.Close()

	ctxID := opts.Context
	if ctxID != "" {
		c, err := contextOf(e.repo, ctxID)
		if err != nil {
			return fail(formatter, "failed to open context", err)
		}
		ctxID = c.ID()
	}

	dump, err := e.repo.Export(cmd.Context(), e.session, repository.ExportOptions{
		Context: ctxID,
		Graph:   opts.Graph,
	})
	if err != nil {
		return fail(formatter, "failed to export", err)
	}

	result := ExportResult{Statements: dump.Statements, Digest: dump.Digest, Output: opts.Output}
	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, dump.NQuads, 0644); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to write export", err)
		}
		formatter.VerboseLog("Wrote %d byte(s) to %s", len(dump.NQuads), opts.Output)
	}

	if formatter.Format == "json" {
		if opts.Output == "" {
			result.NQuads = string(dump.NQuads)
		}
		return formatter.Success(result)
	}
	if opts.Output == "" {
		_, err := formatter.Writer.Write(dump.NQuads)
		return err
	}
	fmt.Fprintf(formatter.Writer, "✓ Exported %d statement(s) to %s\n", result.Statements, opts.Output)
	fmt.Fprintf(formatter.Writer, "Digest: %s\n", result.Digest)
	return nil
}
