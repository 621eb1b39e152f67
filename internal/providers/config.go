package providers

import (
	"fmt"
	"net/url"
	"strings"
)

// String returns a string value from the config, or "" when absent.
func (c Config) String(key string) (string, error) {
	raw, ok := c[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("provider_config.%s must be a string", key)
	}
	return strings.TrimSpace(s), nil
}

// Bool returns a boolean value from the config, or fallback when absent.
func (c Config) Bool(key string, fallback bool) (bool, error) {
	raw, ok := c[key]
	if !ok || raw == nil {
		return fallback, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return fallback, fmt.Errorf("provider_config.%s must be a boolean", key)
	}
	return b, nil
}

// allowKeys rejects keys an adapter does not understand.
func (c Config) allowKeys(provider string, keys ...string) error {
	allowed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		allowed[k] = struct{}{}
	}
	for k := range c {
		if _, ok := allowed[k]; !ok {
			return fmt.Errorf("provider_config.%s is not supported by %s", k, provider)
		}
	}
	return nil
}

func validateAbsoluteURL(key, raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("provider_config.%s must be an absolute http(s) URL", key)
	}
	return nil
}
