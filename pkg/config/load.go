// pkg/config/load.go
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// LoadConfig loads configuration from files, environment variables, and defaults.
// configPath: optional path to a specific configuration file.
// If configPath is empty, searches for "graphorm.yaml" in standard locations.
func LoadConfig(configPath string) (Config, error) {
	v := viper.New()
	cfg := NewDefaultConfig()

	// 1. Set defaults in Viper
	v.SetDefault("database.dialect", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.pool.maxIdleConns", cfg.Database.Pool.MaxIdleConns)
	v.SetDefault("database.pool.maxOpenConns", cfg.Database.Pool.MaxOpenConns)
	v.SetDefault("database.pool.connMaxLifetime", cfg.Database.Pool.ConnMaxLifetime)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("schema.singularTables", cfg.Schema.SingularTables)

	// 2. Configure reading from Environment Variables
	v.SetEnvPrefix("GRAPHORM")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Configure reading from Configuration File
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("graphorm")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.graphorm")
	}

	if err := v.ReadInConfig(); err != nil {
		// Only fatal when a specific file was requested or the file exists but is broken
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return cfg, fmt.Errorf("error reading specified config file %q: %w", configPath, err)
		}
	}

	// 4. Unmarshal the configuration into the Config struct
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("error decoding configuration: %w", err)
	}

	// 5. Validate the configuration struct
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the struct constraints of a configuration built in code.
func Validate(cfg Config) error {
	validate := validator.New()
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, fmt.Sprintf("Field '%s' failed validation on '%s'", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(messages, "; "))
}
