// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		validateMainSettings,
		validateDatabaseSettings,
		validateHTTPSettings,
		validateMediaSettings,
		validateSourcesSettings,
		validateGeocoderSettings,
		validateWebServerSettings,
		validateNotifySettings,
	}
	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateMainSettings(s *Settings) error {
	if _, err := time.LoadLocation(s.Main.TimeZone); err != nil {
		return fmt.Errorf("main.timezone %q is not a known time zone", s.Main.TimeZone)
	}
	return nil
}

func validateDatabaseSettings(s *Settings) error {
	switch strings.ToLower(s.Database.Type) {
	case DatabaseSQLite:
		if s.Database.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path must be set")
		}
	case DatabaseMySQL:
		if s.Database.MySQL.Host == "" || s.Database.MySQL.Database == "" {
			return fmt.Errorf("database.mysql.host and database.mysql.database must be set")
		}
		if s.Database.MySQL.Port < 1 || s.Database.MySQL.Port > 65535 {
			return fmt.Errorf("database.mysql.port %d is out of range", s.Database.MySQL.Port)
		}
	default:
		return fmt.Errorf("database.type %q is not supported", s.Database.Type)
	}
	return nil
}

func validateHTTPSettings(s *Settings) error {
	if s.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be positive")
	}
	if s.HTTP.MaxRetries < 0 || s.HTTP.MaxRetries > 10 {
		return fmt.Errorf("http.maxretries must be between 0 and 10")
	}
	if s.HTTP.RateLimit < 0 {
		return fmt.Errorf("http.ratelimit must not be negative")
	}
	return nil
}

func validateMediaSettings(s *Settings) error {
	if s.Media.Path == "" {
		return fmt.Errorf("media.path must be set")
	}
	if s.Media.MaxSize <= 0 {
		return fmt.Errorf("media.maxsize must be positive")
	}
	return nil
}

func validateFeed(name string, f *FeedSettings) error {
	if !f.Enabled {
		return nil
	}
	if err := validateAbsoluteURL(f.URL); err != nil {
		return fmt.Errorf("%s.url: %w", name, err)
	}
	if f.Interval < time.Minute {
		return fmt.Errorf("%s.interval must be at least one minute", name)
	}
	return nil
}

func validateSourcesSettings(s *Settings) error {
	var problems []string
	feeds := []struct {
		name string
		feed *FeedSettings
	}{
		{"sources.bmkg.recent", &s.Sources.BMKG.Recent},
		{"sources.bmkg.felt", &s.Sources.BMKG.Felt},
		{"sources.bmkg.realtime", &s.Sources.BMKG.Realtime},
		{"sources.dibi", &s.Sources.DIBI.FeedSettings},
		{"sources.social", &s.Sources.Social.FeedSettings},
	}
	for _, f := range feeds {
		if err := validateFeed(f.name, f.feed); err != nil {
			problems = append(problems, err.Error())
		}
	}

	if s.Sources.DIBI.Enabled && s.Sources.DIBI.Pages < 1 {
		problems = append(problems, "sources.dibi.pages must be at least 1")
	}
	if s.Sources.Social.Enabled {
		if s.Sources.Social.BearerToken == "" {
			problems = append(problems, "sources.social.bearertoken must be set when the social source is enabled")
		}
		if len(s.Sources.Social.Accounts) == 0 {
			problems = append(problems, "sources.social.accounts must not be empty")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

func validateGeocoderSettings(s *Settings) error {
	if !s.Geocoder.Enabled {
		return nil
	}
	if err := validateAbsoluteURL(s.Geocoder.Endpoint); err != nil {
		return fmt.Errorf("geocoder.endpoint: %w", err)
	}
	// Nominatim usage policy allows at most one request per second
	if s.Geocoder.RateLimit <= 0 || s.Geocoder.RateLimit > 1 {
		return fmt.Errorf("geocoder.ratelimit must be in (0, 1]")
	}
	return nil
}

func validateWebServerSettings(s *Settings) error {
	if !s.WebServer.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(s.WebServer.Listen); err != nil {
		return fmt.Errorf("webserver.listen %q: %w", s.WebServer.Listen, err)
	}
	if s.WebServer.AdminTokenHash == "" {
		return fmt.Errorf("webserver.admintokenhash must be set when the web server is enabled")
	}
	return nil
}

func validateNotifySettings(s *Settings) error {
	if s.Notify.MQTT.Enabled {
		if s.Notify.MQTT.Broker == "" || s.Notify.MQTT.Topic == "" {
			return fmt.Errorf("notify.mqtt.broker and notify.mqtt.topic must be set")
		}
	}
	if s.Notify.Shoutrrr.Enabled && len(s.Notify.Shoutrrr.URLs) == 0 {
		return fmt.Errorf("notify.shoutrrr.urls must not be empty")
	}
	return nil
}

func validateAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	return nil
}
