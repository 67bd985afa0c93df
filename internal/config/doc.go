// Package config provides the configuration of magicscraper: defaults,
// the optional .magicscraper YAML file, the .env file holding the API key,
// and validation with sentinel errors.
package config
