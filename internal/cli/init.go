package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/mdrepo/internal/compiler"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Seed string
}

// InitResult is the outcome of init.
type InitResult struct {
	Driver   string            `json:"driver"`
	Path     string            `json:"path,omitempty"`
	Contexts []string          `json:"contexts"`
	Applied  *compiler.Applied `json:"applied,omitempty"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create or open a repository",
		Long: `Open the configured store, creating it when missing, and bootstrap
the system contexts and the well-known principals (admin, guest,
admins, users).

With --seed, a CUE seed declaring users, groups, contexts, lists,
quotas and grants is validated and applied. Applying a seed twice
creates nothing the second time.

Examples:
  mdrepo init
  mdrepo init --seed ./seed
  mdrepo --config mdrepo.yaml init --seed team.cue --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Seed, "seed", "", "CUE seed file or directory to apply")

	return cmd
}

func runInit(opts *InitOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	// Load the seed first so a broken seed leaves no store behind
	var seed *compiler.Seed
	if opts.Seed != "" {
		var err error
		if seed, err = loadSeed(opts.Seed); err != nil {
			return outputLoadError(formatter, err)
		}
	}

	e, err := opts.open(formatter)
	if err != nil {
		return err
	}
	defer e.Close()

	result := InitResult{Driver: e.cfg.Store.Driver}
	if e.cfg.Store.Driver == "sqlite" {
		result.Path = e.cfg.Store.Path
	}

	if seed != nil {
		applied, err := compiler.Apply(e.repo, e.session, seed)
		if err != nil {
			var seedErr *compiler.SeedError
			if errors.As(err, &seedErr) {
				return outputValidationErrors(formatter, seedErr.Errors)
			}
			return fail(formatter, "failed to apply seed", err)
		}
		result.Applied = applied
	}

	if result.Contexts, err = e.repo.ContextIDs(); err != nil {
		return fail(formatter, "failed to list contexts", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	if result.Path != "" {
		fmt.Fprintf(w, "✓ Repository ready at %s\n", result.Path)
	} else {
		fmt.Fprintf(w, "✓ Repository ready (%s)\n", result.Driver)
	}
	if a := result.Applied; a != nil {
		fmt.Fprintf(w, "Seed applied: %d user(s), %d group(s), %d context(s), %d list(s) created\n",
			len(a.Users), len(a.Groups), len(a.Contexts), len(a.Lists))
	}
	return nil
}
