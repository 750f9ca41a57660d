// Package config handles configuration loading for ecomap-gateway.
//
// # Overview
//
// Configuration is loaded from a YAML file (or TOML, when the file name ends in
// .toml) with environment variable expansion, defaults, and validation.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from ECOMAP_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/ecomap/gateway.yaml
//  3. ~/.config/ecomap/gateway.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${ECOMAP_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
// ECOMAP_DB_PATH, when set, replaces database.path after decoding.
//
// # Configuration Sections
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	  read_header_timeout: "10s"
//
//	database:
//	  driver: "sqlite"          # sqlite (pure Go) or sqlite3 (cgo)
//	  path: "/var/lib/ecomap/gateway.db"
//
//	auth:
//	  jwt_secret: "${ECOMAP_JWT_SECRET}"   # standard base64, >= 32 bytes decoded
//	  token_ttl: "720h"
//	  public_prefixes:
//	    - "/api/auth/"
//	    - "/api/users/register"
//	    - "/api/users/login"
//	    - "/api/satellite-route/"
//	    - "/health"
//	    - "/metrics"
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// Duration values use Go's time.ParseDuration syntax.
//
// # Validation
//
// Load returns the first failure among: missing http_addr, missing
// database.path, unknown driver, missing jwt_secret, non-positive token_ttl,
// and public prefixes that do not start with "/". Secret decoding is checked
// when the token codec is built at startup.
package config
