// Package conf loads, validates and persists hazardwatch settings.
package conf

import (
	"crypto/rand"
	"embed"
	"encoding/base64"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/hazardwatch/hazardwatch/internal/errors"
)

//go:embed config.yaml
var configFiles embed.FS

// LogConfig controls the root log output.
type LogConfig struct {
	Level    string `yaml:"level"`    // trace, debug, info, warn, error
	Format   string `yaml:"format"`   // json or text
	Enabled  bool   `yaml:"enabled"`  // write to Path in addition to stdout
	Path     string `yaml:"path"`     // log file path
	Rotation string `yaml:"rotation"` // daily, weekly or size
	MaxSize  int    `yaml:"maxsize"`  // megabytes, size rotation only
}

// MainSettings holds process-wide settings.
type MainSettings struct {
	Name     string    `yaml:"name"`     // instance name, used as MQTT client id and in notifications
	TimeZone string    `yaml:"timezone"` // zone occurrence times are normalized to
	Log      LogConfig `yaml:"log"`
}

// SQLiteSettings configures the embedded store.
type SQLiteSettings struct {
	Path string `yaml:"path"`
}

// MySQLSettings configures a MySQL store.
type MySQLSettings struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`     // literal or ${ENV} reference
	PasswordFile string `yaml:"passwordfile"` // e.g. a Docker secret, takes precedence
	Database     string `yaml:"database"`
}

// DatabaseSettings selects and configures the store.
type DatabaseSettings struct {
	Type       string         `yaml:"type"`       // sqlite or mysql
	BulkInsert bool           `yaml:"bulkinsert"` // insert new hazards in one statement
	Debug      bool           `yaml:"debug"`      // log every SQL statement
	SQLite     SQLiteSettings `yaml:"sqlite"`
	MySQL      MySQLSettings  `yaml:"mysql"`
}

// HTTPSettings configures outbound requests to feeds.
type HTTPSettings struct {
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"maxretries"`
	RetryDelay time.Duration `yaml:"retrydelay"`
	RateLimit  float64       `yaml:"ratelimit"` // requests per second per client, 0 disables
	UserAgent  string        `yaml:"useragent"`
}

// MediaSettings configures attachment storage.
type MediaSettings struct {
	Path    string `yaml:"path"`    // root directory for stored files
	MaxSize int64  `yaml:"maxsize"` // bytes accepted per download
}

// FeedSettings configures one polled feed.
type FeedSettings struct {
	Enabled      bool          `yaml:"enabled"`
	URL          string        `yaml:"url"`
	Interval     time.Duration `yaml:"interval"`
	CursorStatus []string      `yaml:"cursorstatus"` // hazard statuses counted by the cursor, empty means any
}

// BMKGSettings configures the BMKG earthquake feeds.
type BMKGSettings struct {
	ShakemapBaseURL string       `yaml:"shakemapbaseurl"`
	Recent          FeedSettings `yaml:"recent"`
	Felt            FeedSettings `yaml:"felt"`
	Realtime        FeedSettings `yaml:"realtime"`
}

// DIBISettings configures the BNPB disaster database scraper.
type DIBISettings struct {
	FeedSettings `yaml:",inline" mapstructure:",squash"`
	Classify     string `yaml:"classify"` // DIBI hazard code filter, empty for all
	Pages        int    `yaml:"pages"`
}

// SocialSettings configures the social media source.
type SocialSettings struct {
	FeedSettings    `yaml:",inline" mapstructure:",squash"`
	BearerToken     string   `yaml:"bearertoken"`
	BearerTokenFile string   `yaml:"bearertokenfile"`
	Accounts        []string `yaml:"accounts"`
	MaxResults      int      `yaml:"maxresults"`
}

// SourcesSettings groups every source adapter.
type SourcesSettings struct {
	BMKG   BMKGSettings   `yaml:"bmkg"`
	DIBI   DIBISettings   `yaml:"dibi"`
	Social SocialSettings `yaml:"social"`
}

// GeocoderSettings configures place name enrichment.
type GeocoderSettings struct {
	Enabled   bool          `yaml:"enabled"`
	Endpoint  string        `yaml:"endpoint"`
	Language  string        `yaml:"language"`
	CacheTTL  time.Duration `yaml:"cachettl"`
	RateLimit float64       `yaml:"ratelimit"` // requests per second
	Timeout   time.Duration `yaml:"timeout"`
}

// SchedulerSettings configures periodic ingestion.
type SchedulerSettings struct {
	Enabled  bool `yaml:"enabled"`
	Parallel int  `yaml:"parallel"` // sources ingested concurrently by RunAll
}

// WebServerSettings configures the admin API.
type WebServerSettings struct {
	Enabled        bool   `yaml:"enabled"`
	Listen         string `yaml:"listen"`
	AdminTokenHash string `yaml:"admintokenhash"` // bcrypt hash of the bearer token
	Metrics        bool   `yaml:"metrics"`
}

// MQTTSettings configures the MQTT notifier.
type MQTTSettings struct {
	Enabled      bool   `yaml:"enabled"`
	Broker       string `yaml:"broker"`
	Topic        string `yaml:"topic"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	PasswordFile string `yaml:"passwordfile"`
	Retain       bool   `yaml:"retain"`
}

// ShoutrrrSettings configures chat notifications.
type ShoutrrrSettings struct {
	Enabled bool     `yaml:"enabled"`
	URLs    []string `yaml:"urls"`
}

// NotifySettings groups notifiers.
type NotifySettings struct {
	MQTT     MQTTSettings     `yaml:"mqtt"`
	Shoutrrr ShoutrrrSettings `yaml:"shoutrrr"`
}

// SentrySettings configures error telemetry.
type SentrySettings struct {
	Enabled     bool   `yaml:"enabled"`
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

// Settings contains all configuration options for hazardwatch.
type Settings struct {
	Debug     bool              `yaml:"debug"`
	Main      MainSettings      `yaml:"main"`
	Database  DatabaseSettings  `yaml:"database"`
	HTTP      HTTPSettings      `yaml:"http"`
	Media     MediaSettings     `yaml:"media"`
	Sources   SourcesSettings   `yaml:"sources"`
	Geocoder  GeocoderSettings  `yaml:"geocoder"`
	Scheduler SchedulerSettings `yaml:"scheduler"`
	WebServer WebServerSettings `yaml:"webserver"`
	Notify    NotifySettings    `yaml:"notify"`
	Sentry    SentrySettings    `yaml:"sentry"`
}

// Location returns the configured time zone, falling back to UTC.
func (s *Settings) Location() *time.Location {
	loc, err := time.LoadLocation(s.Main.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into the global settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(viper.GetViper()); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings, err := unmarshalSettings(viper.GetViper())
	if err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// LoadFile reads settings from an explicit file with a private viper instance.
// The global settings are left untouched.
func LoadFile(path string) (*Settings, error) {
	v := viper.New()
	setDefaultConfig(v)
	if err := configureEnvironmentVariables(v); err != nil {
		log.Printf("%v", err)
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "read-config-file").
			Build()
	}
	return unmarshalSettings(v)
}

func unmarshalSettings(v *viper.Viper) (*Settings, error) {
	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}
	if err := resolveSecrets(settings); err != nil {
		return nil, err
	}
	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}
	return settings, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper(v *viper.Viper) error {
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	setDefaultConfig(v)

	if err := configureEnvironmentVariables(v); err != nil {
		// Invalid environment values are reported but do not prevent startup
		log.Printf("%v", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(v, configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded default config into dir and reads it back
func createDefaultConfig(v *viper.Viper, dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(getDefaultConfig()), 0o600); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return v.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}
	return string(data)
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if GetSettings() == nil {
			if _, err := Load(); err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// SaveYAMLConfig writes settings to configPath atomically.
// It overwrites the existing file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}

// GenerateRandomSecret generates a URL-safe base64 encoded random string
// with 256 bits of entropy, suitable as an admin token.
func GenerateRandomSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		log.Printf("Failed to generate random secret: %v", err)
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(bytes)
}
