// Package config provides configuration loading and validation for the
// feedgate gateway.
//
// It uses Viper to load configuration from YAML files and environment
// variables, with optional .env files for local development overrides.
//
// # Usage
//
//	var cfg feedgate.Config
//	err := config.Load("feedgate", &cfg)
//
// Environment variables override file values using underscore-separated
// paths (e.g., SERVER_PORT, REGISTRY_MAX_ATTEMPTS).
package config
