package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/itohio/goincubator/pkg/store"
)

func (o *rootOptions) store() (*store.Store, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	return store.New(cfg.Store.ReadOnlyFile, cfg.Store.ReadWriteFile), nil
}

func newGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print a value from the configuration store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.store()
			if err != nil {
				return err
			}
			v, ok := s.Get(args[0])
			if !ok {
				return fmt.Errorf("the value for %q is not found", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func newSetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Replace a value in the read-write configuration tier",
		Long: `Replace a value in the read-write configuration tier. The key must
already be provisioned there. Values are stored verbatim without the range
checks the control protocol applies.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.store()
			if err != nil {
				return err
			}
			if err := s.Set(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s:%s\n", args[0], args[1])
			return nil
		},
	}
}

func newDumpCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print both configuration tiers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.store()
			if err != nil {
				return err
			}
			ro, rw, err := s.Entries()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# %s (read-only)\n", s.ReadOnlyFile())
			for _, e := range ro {
				if e.Valid() {
					fmt.Fprintf(out, "%s:%s\n", e.Key, e.Value)
				}
			}
			fmt.Fprintf(out, "# %s (read-write)\n", s.ReadWriteFile())
			for _, e := range rw {
				if e.Valid() {
					fmt.Fprintf(out, "%s:%s\n", e.Key, e.Value)
				}
			}
			return nil
		},
	}
}
