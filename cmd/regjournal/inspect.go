package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/registrar/pkg/registrar/journal"
)

func newListCmd(flags *rootFlags) *cobra.Command {
	var registry string
	var live bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print journal records in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := flags.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(registry)
			if err != nil {
				return err
			}
			if live {
				records = journal.Live(records)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SEQ\tTIME\tREGISTRY\tKIND\tENTRY\tVALUE")
			for _, rec := range records {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
					rec.Sequence, rec.At.Format(time.RFC3339), rec.Registry, rec.Kind, rec.EntryID, rec.Value)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&registry, "registry", "", "Only show records of this registry")
	cmd.Flags().BoolVar(&live, "live", false, "Only show entries that were never unregistered")
	return cmd
}

func newRegistriesCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "registries",
		Short: "List registry names found in the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := flags.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			names, err := store.Registries()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newPruneCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "prune REGISTRY...",
		Short: "Delete all records of the named registries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := flags.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			for _, name := range args {
				if err := store.Delete(name); err != nil {
					return fmt.Errorf("prune %s: %w", name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pruned %s\n", name)
			}
			return nil
		},
	}
}
