package config

import (
	stderrors "errors"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/imkarma/logiri/internal/errors"
)

// legacyEnv maps config keys to the plain environment variable names the
// dashboard has always read. LOGIRI_* names work as well.
var legacyEnv = map[string]string{
	"google.client_id":      "GOOGLE_CLIENT_ID",
	"google.client_secret":  "GOOGLE_CLIENT_SECRET",
	"google.refresh_token":  "GOOGLE_REFRESH_TOKEN",
	"ga4.property_id":       "GA4_PROPERTY_ID",
	"gsc.site_url":          "GSC_SITE_URL",
	"ads.developer_token":   "GOOGLE_ADS_DEVELOPER_TOKEN",
	"ads.customer_id":       "GOOGLE_ADS_CUSTOMER_ID",
	"ads.login_customer_id": "GOOGLE_ADS_LOGIN_CUSTOMER_ID",
	"semrush.api_key":       "SEMRUSH_API_KEY",
	"assistant.model":       "CLAUDE_MODEL",
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("LOGIRI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		// Prefixed name wins over the legacy one.
		_ = v.BindEnv(key, "LOGIRI_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}
	return v
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("version", d.Version)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("database", d.Database)
	v.SetDefault("rules_file", d.RulesFile)
	v.SetDefault("site.name", d.Site.Name)
	v.SetDefault("site.url", d.Site.URL)
	v.SetDefault("site.domain", d.Site.Domain)
	v.SetDefault("site.brand_term", d.Site.BrandTerm)
	v.SetDefault("ads.api_version", d.Ads.APIVersion)
	v.SetDefault("semrush.database", d.Semrush.Database)
	v.SetDefault("assistant.name", d.Assistant.Name)
	v.SetDefault("assistant.provider", d.Assistant.Provider)
	v.SetDefault("assistant.model", d.Assistant.Model)
	v.SetDefault("assistant.api_key_env", d.Assistant.APIKeyEnv)
	v.SetDefault("assistant.max_tokens", d.Assistant.MaxTokens)
	v.SetDefault("ingest.parallel", d.Ingest.Parallel)
	v.SetDefault("ingest.timeout", d.Ingest.Timeout)
	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("http.read_timeout", d.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", d.HTTP.WriteTimeout)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)

	// Keys without a default are invisible to Unmarshal unless set.
	for _, key := range []string{
		"google.client_id", "google.client_secret", "google.refresh_token",
		"ga4.property_id", "gsc.site_url",
		"ads.developer_token", "ads.customer_id", "ads.login_customer_id",
		"semrush.api_key",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("google.token_url", "")
	v.SetDefault("ga4.base_url", "")
	v.SetDefault("gsc.base_url", "")
	v.SetDefault("ads.base_url", "")
	v.SetDefault("semrush.base_url", "")
	v.SetDefault("assistant.base_url", "")
	v.SetDefault("assistant.timeout_sec", 0)
}

// Load reads configuration with this precedence (highest first):
//  1. LOGIRI_* environment variables, then the legacy names (GOOGLE_CLIENT_ID, ...)
//  2. The YAML file at path, if it exists
//  3. Built-in defaults
//
// A missing file is not an error.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				var nf viper.ConfigFileNotFoundError
				if !stderrors.As(err, &nf) {
					return nil, errors.Wrap(err, "read config")
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decoderOption()); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
	)
}
