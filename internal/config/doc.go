// Package config loads, normalizes, and validates fileconv configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads optional .env files, and honours
// environment fallbacks such as FILECONV_API_URL. The Config type centralizes
// every knob the session manager, job client, and CLI need so the API endpoint,
// polling cadence, and state directory are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
