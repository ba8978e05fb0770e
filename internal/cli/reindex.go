package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// ReindexResult lists the rebuilt contexts.
type ReindexResult struct {
	Contexts []string `json:"contexts,omitempty"` // empty means all
	Millis   int64    `json:"millis"`
}

// NewReindexCommand creates the reindex command.
func NewReindexCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex [context...]",
		Short: "Rebuild container indexes",
		Long: `Rebuild the resource and metadata indexes of the given contexts from
the stored entry graphs, or of every context when none is given.

Examples:
  mdrepo reindex
  mdrepo reindex docs 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			e, err := rootOpts.open(formatter)
			if err != nil {
				return err
			}
			defer e.Close()

			start := time.Now()
			if len(args) == 0 {
				if err := e.repo.ReIndexAll(cmd.Context()); err != nil {
					return fail(formatter, "failed to reindex", err)
				}
			}
			for _, id := range args {
				c, err := contextOf(e.repo, id)
				if err != nil {
					return fail(formatter, "failed to open context", err)
				}
				formatter.VerboseLog("Reindexing %s", c.ID())
				if err := c.ReIndex(); err != nil {
					return fail(formatter, fmt.Sprintf("failed to reindex %s", c.ID()), err)
				}
			}

			result := ReindexResult{Contexts: args, Millis: time.Since(start).Milliseconds()}
			if formatter.Format == "json" {
				return formatter.Success(result)
			}
			if len(args) == 0 {
				fmt.Fprintln(formatter.Writer, "✓ Reindexed all contexts")
			} else {
				fmt.Fprintf(formatter.Writer, "✓ Reindexed %d context(s)\n", len(args))
			}
			return nil
		},
	}
}
