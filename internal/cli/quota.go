package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/mdrepo/internal/config"
	"github.com/roach88/mdrepo/internal/repository"
)

// QuotaInfo is the byte budget of a context.
type QuotaInfo struct {
	Context   string `json:"context"`
	Quota     int64  `json:"quota"` // -1 is unlimited
	Default   bool   `json:"default"`
	FillLevel int64  `json:"fill_level"`
	Enforced  bool   `json:"enforced"`
}

// NewQuotaCommand creates the quota command group.
func NewQuotaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Show and change context quotas",
		Long: `Show and change the byte budget of a context. Sizes accept units
such as 512k, 10M or 2G, and "unlimited". Quotas are enforced when
quota.enabled is set in the config.`,
	}
	cmd.AddCommand(newQuotaShowCommand(rootOpts))
	cmd.AddCommand(newQuotaSetCommand(rootOpts))
	cmd.AddCommand(newQuotaRecalcCommand(rootOpts))
	return cmd
}

func newQuotaShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <context>",
		Short: "Show quota and fill level",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContext(opts, cmd, args[0], func(e *env, c *repository.Context) (QuotaInfo, error) {
				return quotaInfo(e, c)
			})
		},
	}
}

func newQuotaSetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <context> <size>",
		Short: "Set the quota of a context",
		Long: `Set an explicit quota. "default" drops it so the configured default
applies again. Only admin and members of admins may change quotas.

Examples:
  mdrepo quota set docs 10M
  mdrepo quota set docs unlimited
  mdrepo quota set docs default`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var size int64
			if args[1] != "default" {
				var err error
				if size, err = config.ParseSize(args[1]); err != nil {
					return badArgument(opts.formatter(cmd), err)
				}
			}
			return withContext(opts, cmd, args[0], func(e *env, c *repository.Context) (QuotaInfo, error) {
				var err error
				if args[1] == "default" {
					err = c.RemoveQuota(e.session)
				} else {
					err = c.SetQuota(e.session, size)
				}
				if err != nil {
					return QuotaInfo{}, err
				}
				return quotaInfo(e, c)
			})
		},
	}
}

func newQuotaRecalcCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recalc <context>",
		Short: "Recompute the fill level from the stored payloads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContext(opts, cmd, args[0], func(e *env, c *repository.Context) (QuotaInfo, error) {
				if _, err := c.RecalculateFillLevel(); err != nil {
					return QuotaInfo{}, err
				}
				return quotaInfo(e, c)
			})
		},
	}
}

// withContext opens the repository, resolves ctx and prints what fn
// returns.
func withContext(opts *RootOptions, cmd *cobra.Command, ctx string, fn func(*env, *repository.Context) (QuotaInfo, error)) error {
	formatter := opts.formatter(cmd)
	e, err := opts.open(formatter)
	if err != nil {
		return err
	}
	defer e.Close()

	c, err := contextOf(e.repo, ctx)
	if err != nil {
		return fail(formatter, "failed to open context", err)
	}
	info, err := fn(e, c)
	if err != nil {
		return fail(formatter, "quota "+cmd.Name()+" failed", err)
	}
	if formatter.Format == "json" {
		return formatter.Success(info)
	}
	quota := config.FormatSize(info.Quota)
	if info.Default {
		quota += " (default)"
	}
	fmt.Fprintf(formatter.Writer, "Context:    %s\n", info.Context)
	fmt.Fprintf(formatter.Writer, "Quota:      %s\n", quota)
	fmt.Fprintf(formatter.Writer, "Fill level: %d bytes\n", info.FillLevel)
	if !info.Enforced {
		fmt.Fprintln(formatter.Writer, "Quotas are not enforced (quota.enabled is false)")
	}
	return nil
}

func quotaInfo(e *env, c *repository.Context) (QuotaInfo, error) {
	info := QuotaInfo{Context: c.ID(), Enforced: e.cfg.Quota.Enabled}
	var err error
	if info.Quota, err = c.Quota(); err != nil {
		return info, err
	}
	if info.Default, err = c.HasDefaultQuota(); err != nil {
		return info, err
	}
	if info.FillLevel, err = c.FillLevel(); err != nil {
		return info, err
	}
	return info, nil
}
