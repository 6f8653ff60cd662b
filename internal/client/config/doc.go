// Package config loads runtime configuration for the ATM admin console.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. ATMADMIN_* environment variables.
//  4. Command-line flags, which override everything else.
//
// Supported flags
//
//	-a string   base URL of the REST API, e.g. http://127.0.0.1:8000/api/v1
//	-d string   path of the local token database
//	-t int      request timeout (seconds)
//	-p int      default page size for list screens
//	-l string   log level (debug, info, warn, error)
//
// # JSON schema
//
//	{
//	  "api_base_url": "http://127.0.0.1:8000/api/v1",
//	  "token_db_path": "atmadmin.db",
//	  "request_timeout": "15s",
//	  "page_size": 15,
//	  "log_level": "info",
//	  "log_format": "text",
//	  "metrics_addr": "127.0.0.1:9100"
//	}
//
// The merged result is validated before LoadConfig returns it.
package config
