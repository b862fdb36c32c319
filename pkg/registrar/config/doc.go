/*
Package config loads registrar settings from YAML or JSON and turns them
into options for registries, events, and journals.

# File Format

	name: editor
	logging:
	  level: debug
	  format: json
	metrics:
	  enabled: true
	tracing:
	  enabled: false
	journal:
	  driver: sqlite
	  path: ./journal.db

Every field is optional. Missing fields keep the values from Default.

# Usage

	cfg, err := config.FromFile("registrar.yaml")
	if err != nil {
	    return err
	}
	logger, err := cfg.Logger(os.Stderr)
	if err != nil {
	    return err
	}
	menu := traced.New[MenuItem](cfg.TracedOptions("menu", logger)...)

	store, err := cfg.OpenJournal()
	if err != nil {
	    return err
	}
	defer store.Close()
	defer journal.Attach(menu, store).Release()
*/
package config
