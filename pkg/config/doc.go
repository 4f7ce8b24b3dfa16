// Package config loads and validates rulekit configuration.
//
// Configuration is read from YAML and decoded on top of Default, so every
// field the file leaves out keeps its default value:
//
//	cfg, err := config.LoadConfig("rulekit.yaml")
//
// LoadConfigWithEnvOverrides additionally applies environment variables named
// RULEKIT_SECTION_FIELD, which take precedence over the file:
//
//   - RULEKIT_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - RULEKIT_RULES_PATH overrides rules.path
//   - RULEKIT_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// A minimal file:
//
//	store:
//	  backend: sqlite
//	  sqlite:
//	    path: data/rules.db
//	rules:
//	  path: ./rules
//	  watch: true
//	audit:
//	  retention:
//	    days: 30
//
// Validate collects every problem into a ValidationError rather than stopping
// at the first one. Each section has a To* method producing the configuration
// type of the package it drives (engine, store, source, audit, telemetry).
package config
