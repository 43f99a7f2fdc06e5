// Package config defines the settings used by the alarm binaries and provides
// helpers to load, validate and save them in YAML format.
//
// Values are read from the YAML file first, then overridden by SHARED_ALARM_*
// variables from the process environment or a .env file. Validate fills defaults.
package config
