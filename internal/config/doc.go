// Package config handles HCL configuration parsing and validation.
//
// # Configuration Blocks
//
//   - feed: reduction mode and overlap handling
//   - storage: snapshot backend (memory, file, sqlite, postgres) and retention
//   - api: HTTP listener for the feed and admin API, write throttling
//   - redis: optional publish notifications
//   - audit: audit log location and retention
//   - logging: level and output format
//
// Attribute values may call env("NAME") or env("NAME", "default") to read
// the process environment, which keeps secrets such as DSNs out of the file.
//
// # Example
//
//	schema_version = "1.0"
//
//	feed {
//	  reduction = "aggressive"
//	}
//
//	storage {
//	  backend   = "postgres"
//	  dsn       = env("IPFEED_DSN")
//	  keep_last = 50
//	}
//
//	api {
//	  listen      = ":8080"
//	  write_limit = 30
//	}
package config
