package config

import (
	"github.com/imkarma/logiri/internal/errors"
)

// RequireGoogle fails when the OAuth client triple is incomplete.
func (c *Config) RequireGoogle() error {
	missing := missingOf(map[string]string{
		"GOOGLE_CLIENT_ID":     c.Google.ClientID,
		"GOOGLE_CLIENT_SECRET": c.Google.ClientSecret,
		"GOOGLE_REFRESH_TOKEN": c.Google.RefreshToken,
	})
	if len(missing) > 0 {
		return errors.Wrapf(errors.ErrMissingCredentials, "google oauth: %v", missing)
	}
	return nil
}

// RequireGA4 checks everything the GA4 source needs.
func (c *Config) RequireGA4() error {
	if err := c.RequireGoogle(); err != nil {
		return err
	}
	if c.GA4.PropertyID == "" {
		return errors.Wrap(errors.ErrMissingCredentials, "ga4: GA4_PROPERTY_ID not set")
	}
	return nil
}

// RequireGSC checks everything the Search Console source needs.
func (c *Config) RequireGSC() error {
	if err := c.RequireGoogle(); err != nil {
		return err
	}
	if c.GSC.SiteURL == "" {
		return errors.Wrap(errors.ErrMissingCredentials, "gsc: GSC_SITE_URL not set")
	}
	return nil
}

// RequireAds checks everything the Google Ads source needs.
func (c *Config) RequireAds() error {
	if err := c.RequireGoogle(); err != nil {
		return err
	}
	missing := missingOf(map[string]string{
		"GOOGLE_ADS_DEVELOPER_TOKEN": c.Ads.DeveloperToken,
		"GOOGLE_ADS_CUSTOMER_ID":     c.Ads.CustomerID,
	})
	if len(missing) > 0 {
		return errors.Wrapf(errors.ErrMissingCredentials, "ads: %v", missing)
	}
	return nil
}

// RequireSemrush checks the SEMrush key and domain.
func (c *Config) RequireSemrush() error {
	if c.Semrush.APIKey == "" {
		return errors.Wrap(errors.ErrMissingCredentials, "semrush: SEMRUSH_API_KEY not set")
	}
	if c.Site.Domain == "" {
		return errors.Wrap(errors.ErrMissingCredentials, "semrush: site.domain not set")
	}
	return nil
}

// RequireAssistant checks the key for the configured provider.
func (c *Config) RequireAssistant() error {
	if c.Assistant.APIKey() == "" {
		return errors.Wrapf(errors.ErrMissingCredentials, "assistant: %s not set", c.Assistant.APIKeyEnv)
	}
	return nil
}

// EnvStatus is one line of the env-check report.
type EnvStatus struct {
	Name  string
	Found bool
}

// EnvCheck reports which credentials resolved to a non-empty value.
func (c *Config) EnvCheck() []EnvStatus {
	keyEnv := c.Assistant.APIKeyEnv
	if keyEnv == "" {
		keyEnv = "ASSISTANT_API_KEY"
	}
	return []EnvStatus{
		{"GOOGLE_CLIENT_ID", c.Google.ClientID != ""},
		{"GOOGLE_CLIENT_SECRET", c.Google.ClientSecret != ""},
		{"GOOGLE_REFRESH_TOKEN", c.Google.RefreshToken != ""},
		{"GA4_PROPERTY_ID", c.GA4.PropertyID != ""},
		{"GSC_SITE_URL", c.GSC.SiteURL != ""},
		{"GOOGLE_ADS_DEVELOPER_TOKEN", c.Ads.DeveloperToken != ""},
		{"GOOGLE_ADS_CUSTOMER_ID", c.Ads.CustomerID != ""},
		{"SEMRUSH_API_KEY", c.Semrush.APIKey != ""},
		{keyEnv, c.Assistant.APIKey() != ""},
	}
}

func missingOf(values map[string]string) []string {
	var out []string
	for _, name := range []string{
		"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "GOOGLE_REFRESH_TOKEN",
		"GOOGLE_ADS_DEVELOPER_TOKEN", "GOOGLE_ADS_CUSTOMER_ID",
	} {
		if v, ok := values[name]; ok && v == "" {
			out = append(out, name)
		}
	}
	return out
}
