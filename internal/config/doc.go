// Package config loads, normalizes, and validates adscribe configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a .env file when present, and honours
// environment fallbacks such as OPENROUTER_API_KEY and OPENAI_API_KEY. The
// Config type centralizes every threshold the analysis, scheduling, mixing and
// queueing stages read.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical provider names, and clear validation errors.
package config
