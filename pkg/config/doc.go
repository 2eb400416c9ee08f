// Package config defines the configuration for the Oracle relay. The
// configuration is an explicit value: it is loaded once from YAML (with
// optional ORACLE_* environment overrides), validated, and passed into
// each component. Nothing reads the environment at call time.
package config
