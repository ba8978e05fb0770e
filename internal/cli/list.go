package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/mdrepo/internal/repository"
)

// NewListCommand creates the list command group.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Manage list children",
		Long: `Add, remove and show the children of a list. Lists are named by
their entry or resource URI; children by their entry URI.`,
	}
	cmd.AddCommand(newListChangeCommand(rootOpts, "add", "Append a child to a list",
		func(l *repository.List, s repository.Session, child string) error { return l.AddChild(s, child) }))
	cmd.AddCommand(newListChangeCommand(rootOpts, "remove", "Detach a child from a list",
		(*repository.List).RemoveChild))
	cmd.AddCommand(newListChildrenCommand(rootOpts))
	return cmd
}

type listChange func(l *repository.List, s repository.Session, child string) error

func newListChangeCommand(opts *RootOptions, use, short string, change listChange) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <list> <child>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			e, err := opts.open(formatter)
			if err != nil {
				return err
			}
			defer e.Close()

			l, err := e.repo.List(args[0])
			if err != nil {
				return fail(formatter, "failed to open list", err)
			}
			if err := change(l, e.session, args[1]); err != nil {
				return fail(formatter, fmt.Sprintf("failed to %s child", use), err)
			}
			children, err := l.Children(e.session)
			if err != nil {
				return fail(formatter, "failed to read children", err)
			}
			if formatter.Format == "json" {
				return formatter.Success(map[string]any{"list": l.URI(), "children": children})
			}
			fmt.Fprintf(formatter.Writer, "✓ %s now holds %d child(ren)\n", l.URI(), len(children))
			return nil
		},
	}
}

func newListChildrenCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "children <list>",
		Short: "Show the children of a list in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			e, err := opts.open(formatter)
			if err != nil {
				return err
			}
			defer e.Close()

			l, err := e.repo.List(args[0])
			if err != nil {
				return fail(formatter, "failed to open list", err)
			}
			children, err := l.Children(e.session)
			if err != nil {
				return fail(formatter, "failed to read children", err)
			}
			if formatter.Format == "json" {
				if children == nil {
					children = []string{}
				}
				return formatter.Success(children)
			}
			for _, c := range children {
				fmt.Fprintln(formatter.Writer, c)
			}
			return nil
		},
	}
}
