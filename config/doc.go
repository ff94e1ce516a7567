// Package config provides configuration loading and validation for quire.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (QUIRE_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Store in context for subcommands
//	ctx = config.WithContext(ctx, cfg)
//
//	// Retrieve later
//	cfg, err = config.FromContext(ctx)
//
// # Environment Variables
//
// All config keys map to environment variables with QUIRE_ prefix:
//   - server.port → QUIRE_SERVER_PORT
//   - database.type → QUIRE_DATABASE_TYPE
//   - log.level → QUIRE_LOG_LEVEL
//
// # Configuration Structure
//
// The Config struct contains:
//   - Server: port and max_upload_size
//   - Service: cleanup_timeout for background blob cleanup
//   - Database: type (sqlite/postgres), shard DSN list, and table name
//   - Providers: ordered storage provider list with per-provider credentials
//   - CORS: cross-origin resource sharing settings
//   - Log: logging level and format
//
// # Validation
//
// Configuration is validated using struct tags, then each provider entry
// is checked against its kind's credential requirements:
//   - Port must be 1-65535
//   - Log level must be debug, info, warn, or error
//   - Log format must be text or json
//   - Provider kinds must be one of the supported storage backends
package config
