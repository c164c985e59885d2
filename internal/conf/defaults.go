package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Default feed endpoints.
const (
	DefaultBMKGBase      = "https://data.bmkg.go.id/DataMKG/TEWS/"
	DefaultBMKGRecentURL = DefaultBMKGBase + "autogempa.json"
	DefaultBMKGFeltURL   = DefaultBMKGBase + "gempadirasakan.json"
	DefaultBMKGLatestURL = DefaultBMKGBase + "gempaterkini.json"
	DefaultDIBIURL       = "https://dibi.bnpb.go.id/xdibi"
	DefaultSocialURL     = "https://api.twitter.com/2/tweets/search/recent"
	DefaultNominatimURL  = "https://nominatim.openstreetmap.org"
)

// DefaultSocialAccounts are the BMKG regional accounts that post shakemaps.
var DefaultSocialAccounts = []string{
	"bmkgwilayah2", "bmkgjogja", "infoBMKGMaluku", "bmkgpapua", "bmkgpadangpjg",
	"stageof_TPTI", "bmkgpriok", "bbMKG3", "BMKGSulsel", "StasiunAlor",
	"stageof_mataram", "StaklimJogja", "infoBMKG",
}

// setDefaultConfig sets the default values for every configuration key.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	// Main configuration
	v.SetDefault("main.name", "hazardwatch")
	v.SetDefault("main.timezone", "Asia/Jakarta")
	v.SetDefault("main.log.level", "info")
	v.SetDefault("main.log.format", "json")
	v.SetDefault("main.log.enabled", false)
	v.SetDefault("main.log.path", "logs/hazardwatch.log")
	v.SetDefault("main.log.rotation", "daily")
	v.SetDefault("main.log.maxsize", 100)

	// Database
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.bulkinsert", true)
	v.SetDefault("database.debug", false)
	v.SetDefault("database.sqlite.path", "hazardwatch.db")
	v.SetDefault("database.mysql.host", "localhost")
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mysql.username", "")
	v.SetDefault("database.mysql.password", "")
	v.SetDefault("database.mysql.passwordfile", "")
	v.SetDefault("database.mysql.database", "hazardwatch")

	// Outbound HTTP
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.maxretries", 3)
	v.SetDefault("http.retrydelay", 2*time.Second)
	v.SetDefault("http.ratelimit", 2.0)
	v.SetDefault("http.useragent", "hazardwatch/1.0")

	// Attachments
	v.SetDefault("media.path", "media")
	v.SetDefault("media.maxsize", 4*1024*1024)

	// BMKG feeds
	v.SetDefault("sources.bmkg.shakemapbaseurl", DefaultBMKGBase)
	v.SetDefault("sources.bmkg.recent.enabled", true)
	v.SetDefault("sources.bmkg.recent.url", DefaultBMKGRecentURL)
	v.SetDefault("sources.bmkg.recent.interval", 5*time.Minute)
	v.SetDefault("sources.bmkg.felt.enabled", true)
	v.SetDefault("sources.bmkg.felt.url", DefaultBMKGFeltURL)
	v.SetDefault("sources.bmkg.felt.interval", 5*time.Minute)
	v.SetDefault("sources.bmkg.realtime.enabled", false)
	v.SetDefault("sources.bmkg.realtime.url", DefaultBMKGLatestURL)
	v.SetDefault("sources.bmkg.realtime.interval", 1*time.Minute)

	// BNPB DIBI
	v.SetDefault("sources.dibi.enabled", false)
	v.SetDefault("sources.dibi.url", DefaultDIBIURL)
	v.SetDefault("sources.dibi.interval", 6*time.Hour)
	v.SetDefault("sources.dibi.classify", "")
	v.SetDefault("sources.dibi.pages", 1)

	// Social media
	v.SetDefault("sources.social.enabled", false)
	v.SetDefault("sources.social.url", DefaultSocialURL)
	v.SetDefault("sources.social.interval", 15*time.Minute)
	v.SetDefault("sources.social.bearertoken", "")
	v.SetDefault("sources.social.bearertokenfile", "")
	v.SetDefault("sources.social.accounts", DefaultSocialAccounts)
	v.SetDefault("sources.social.maxresults", 10)

	// Geocoder
	v.SetDefault("geocoder.enabled", false)
	v.SetDefault("geocoder.endpoint", DefaultNominatimURL)
	v.SetDefault("geocoder.language", "id")
	v.SetDefault("geocoder.cachettl", 24*time.Hour)
	v.SetDefault("geocoder.ratelimit", 1.0)
	v.SetDefault("geocoder.timeout", 7*time.Second)

	// Scheduler
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.parallel", 1)

	// Admin web server
	v.SetDefault("webserver.enabled", false)
	v.SetDefault("webserver.listen", "127.0.0.1:8090")
	v.SetDefault("webserver.admintokenhash", "")
	v.SetDefault("webserver.metrics", true)

	// Notifications
	v.SetDefault("notify.mqtt.enabled", false)
	v.SetDefault("notify.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("notify.mqtt.topic", "hazardwatch/hazards")
	v.SetDefault("notify.mqtt.username", "")
	v.SetDefault("notify.mqtt.password", "")
	v.SetDefault("notify.mqtt.passwordfile", "")
	v.SetDefault("notify.mqtt.retain", false)
	v.SetDefault("notify.shoutrrr.enabled", false)
	v.SetDefault("notify.shoutrrr.urls", []string{})

	// Telemetry
	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")
}
