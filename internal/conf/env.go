// env.go - Environment variable configuration and validation
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "HAZARDWATCH_DEBUG", validateEnvBool},
		{"main.timezone", "HAZARDWATCH_TIMEZONE", validateEnvTimeZone},
		{"main.log.level", "HAZARDWATCH_LOG_LEVEL", nil},

		// Database
		{"database.type", "HAZARDWATCH_DATABASE_TYPE", validateEnvDatabaseType},
		{"database.sqlite.path", "HAZARDWATCH_SQLITE_PATH", nil},
		{"database.mysql.host", "HAZARDWATCH_MYSQL_HOST", nil},
		{"database.mysql.port", "HAZARDWATCH_MYSQL_PORT", validateEnvPort},
		{"database.mysql.username", "HAZARDWATCH_MYSQL_USERNAME", nil},
		{"database.mysql.password", "HAZARDWATCH_MYSQL_PASSWORD", nil},
		{"database.mysql.database", "HAZARDWATCH_MYSQL_DATABASE", nil},

		// Sources
		{"sources.social.bearertoken", "HAZARDWATCH_SOCIAL_BEARER_TOKEN", nil},
		{"sources.dibi.url", "HAZARDWATCH_DIBI_URL", validateEnvURL},
		{"http.timeout", "HAZARDWATCH_HTTP_TIMEOUT", validateEnvDuration},

		// Surfaces
		{"webserver.listen", "HAZARDWATCH_LISTEN", nil},
		{"webserver.admintokenhash", "HAZARDWATCH_ADMIN_TOKEN_HASH", nil},
		{"notify.mqtt.password", "HAZARDWATCH_MQTT_PASSWORD", nil},
		{"sentry.dsn", "HAZARDWATCH_SENTRY_DSN", validateEnvURL},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

// validateEnvBool validates boolean environment variables
func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true or false")
	}
	return nil
}

func validateEnvTimeZone(value string) error {
	if _, err := time.LoadLocation(value); err != nil {
		return fmt.Errorf("unknown time zone")
	}
	return nil
}

func validateEnvDatabaseType(value string) error {
	switch strings.ToLower(value) {
	case DatabaseSQLite, DatabaseMySQL:
		return nil
	default:
		return fmt.Errorf("must be %s or %s", DatabaseSQLite, DatabaseMySQL)
	}
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("must be a port number between 1 and 65535")
	}
	return nil
}

func validateEnvDuration(value string) error {
	if _, err := time.ParseDuration(value); err != nil {
		return fmt.Errorf("must be a duration such as 30s")
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("must be an absolute URL")
	}
	return nil
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables(v *viper.Viper) error {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return bindEnvVars(v)
}
