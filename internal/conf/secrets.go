package conf

import "github.com/hazardwatch/hazardwatch/internal/secrets"

// resolveSecrets replaces credential fields with the values of their
// referenced environment variables or secret files.
func resolveSecrets(s *Settings) error {
	fields := []struct {
		name  string
		file  string
		value *string
	}{
		{"database.mysql.password", s.Database.MySQL.PasswordFile, &s.Database.MySQL.Password},
		{"sources.social.bearertoken", s.Sources.Social.BearerTokenFile, &s.Sources.Social.BearerToken},
		{"notify.mqtt.password", s.Notify.MQTT.PasswordFile, &s.Notify.MQTT.Password},
		{"sentry.dsn", "", &s.Sentry.DSN},
	}
	for _, f := range fields {
		resolved, err := secrets.Resolve(f.name, f.file, *f.value)
		if err != nil {
			return err
		}
		*f.value = resolved
	}
	return nil
}
