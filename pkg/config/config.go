// pkg/config/config.go
package config

import "time"

// PoolConfig defines the connection pool settings.
type PoolConfig struct {
	MaxIdleConns    int           `mapstructure:"maxIdleConns"    validate:"gte=0"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns"    validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"` // Ex: "1h", "30m"
}

// DatabaseConfig defines the database connection settings.
type DatabaseConfig struct {
	Dialect string     `mapstructure:"dialect" validate:"required"`  // Ex: "mysql", "sqlite", "postgres", "sqlserver"
	DSN     string     `mapstructure:"dsn"      validate:"required"` // Dialect specific Data Source Name
	Pool    PoolConfig `mapstructure:"pool"`
}

// LoggingConfig defines the logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  validate:"omitempty,oneof=trace debug info warn error disabled"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json"`
}

// SchemaConfig defines how entity types are named in the database.
type SchemaConfig struct {
	SingularTables bool `mapstructure:"singularTables"` // "Author" -> "author" instead of "authors"
}

// Config is the root struct aggregating every setting.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Schema   SchemaConfig   `mapstructure:"schema"`
}

// NewDefaultConfig creates a configuration with default values.
func NewDefaultConfig() Config {
	return Config{
		Database: DatabaseConfig{
			// Dialect and DSN must be supplied by the user
			Pool: PoolConfig{
				MaxIdleConns:    5,
				MaxOpenConns:    10,
				ConnMaxLifetime: time.Hour * 1,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
