/*
Package config loads relay settings from the environment or from a YAML or
JSON file.

# Environment

Settings are read from EVENTRELAY_* variables:

	settings, err := config.LoadSettings()
	if err != nil {
	    log.Fatal(err)
	}

Both processes of a relay must resolve the same AppGroupID and
ContainersRoot, otherwise they read and write different caches.

# Files

A file groups the same values into sections:

	app_group_id: group.com.example.app
	containers_root: /var/lib/eventrelay
	store:
	  backend: sqlite
	  codec: cbor
	signal:
	  backend: file
	  debounce: 50ms

Load it with:

	cfg, err := config.FromFile("relay.yaml")
	settings := config.SettingsFromConfig(config.DefaultSettings(), cfg)

${VAR} references in a file are expanded from the environment before
parsing.

# Typed access

Config wraps a map[string]any and returns defaults for missing keys or
values of the wrong type:

	timeout := cfg.Duration("timeout", 10*time.Second)
	lock := cfg.Sub("store").Bool("file_lock", false)
*/
package config
