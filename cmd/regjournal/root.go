package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/registrar/pkg/registrar/config"
	"github.com/randalmurphal/registrar/pkg/registrar/journal"
)

type rootFlags struct {
	dbPath     string
	configPath string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "regjournal",
		Short: "Run registry scenarios and inspect lifecycle journals",
		Long: `regjournal records every register and unregister of traced registries
into a journal and lets you inspect what was recorded.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flags.dbPath, "db", "", "SQLite journal path (overrides journal settings from --config)")
	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "YAML or JSON config file")

	cmd.AddCommand(newDemoCmd(flags))
	cmd.AddCommand(newListCmd(flags))
	cmd.AddCommand(newRegistriesCmd(flags))
	cmd.AddCommand(newPruneCmd(flags))
	return cmd
}

// load resolves the config file and --db override.
func (f *rootFlags) load() (config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.FromFile(f.configPath); err != nil {
			return config.Config{}, err
		}
	}
	if f.dbPath != "" {
		cfg.Journal = config.JournalConfig{Driver: config.DriverSQLite, Path: f.dbPath}
	}
	return cfg, nil
}

// openStore opens the journal for the read-only commands, which make no
// sense against a fresh in-memory store.
func (f *rootFlags) openStore() (journal.Store, error) {
	cfg, err := f.load()
	if err != nil {
		return nil, err
	}
	if cfg.Journal.Driver != config.DriverSQLite {
		return nil, fmt.Errorf("a sqlite journal is required: pass --db or set journal.driver in the config")
	}
	return cfg.OpenJournal()
}
