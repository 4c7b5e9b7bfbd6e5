package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/chetan-code/supatodo/internal/auth"
)

// ClientConfig configures the terminal client.
type ClientConfig struct {
	// SupabaseURL is the provider project the client signs in against.
	SupabaseURL string `yaml:"supabase_url"`

	// AnonKey is the project's public key. It must be a signed JWT.
	AnonKey string `yaml:"anon_key"`

	// ProviderDomain is the domain SupabaseURL must belong to.
	// Default: supabase.co
	ProviderDomain string `yaml:"provider_domain"`

	// APIURL is the todo API server. Default: http://localhost:5001
	APIURL string `yaml:"api_url"`

	// SessionFile persists the signed-in session between runs.
	// Default: <user config dir>/supatodo/session
	SessionFile string `yaml:"session_file"`

	// SessionSecret authenticates the session file. When empty a random
	// key is kept next to the session file.
	SessionSecret string `yaml:"session_secret"`
}

func DefaultClient() *ClientConfig {
	sessionFile := "supatodo-session"
	if dir, err := os.UserConfigDir(); err == nil {
		sessionFile = filepath.Join(dir, "supatodo", "session")
	}
	return &ClientConfig{
		ProviderDomain: "supabase.co",
		APIURL:         "http://localhost:5001",
		SessionFile:    sessionFile,
	}
}

func LoadClient(path string) (*ClientConfig, error) {
	return loadClient(path, os.LookupEnv)
}

func loadClient(path string, lookup lookupFunc) (*ClientConfig, error) {
	cfg := DefaultClient()
	if err := loadFile(path, cfg); err != nil {
		return nil, err
	}

	override(lookup, "SUPABASE_URL", &cfg.SupabaseURL)
	override(lookup, "SUPABASE_ANON_KEY", &cfg.AnonKey)
	override(lookup, "SUPABASE_DOMAIN", &cfg.ProviderDomain)
	override(lookup, "TODO_API_URL", &cfg.APIURL)
	override(lookup, "TODO_SESSION_FILE", &cfg.SessionFile)
	override(lookup, "TODO_SESSION_SECRET", &cfg.SessionSecret)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ClientConfig) Validate() error {
	if c.SupabaseURL == "" || c.AnonKey == "" {
		return errors.New("missing SUPABASE_URL or SUPABASE_ANON_KEY")
	}
	if !InProviderDomain(c.SupabaseURL, c.ProviderDomain) {
		return fmt.Errorf("invalid SUPABASE_URL %q: host must be under %s", c.SupabaseURL, c.ProviderDomain)
	}
	if !auth.LooksLikeJWT(c.AnonKey) {
		return errors.New("invalid SUPABASE_ANON_KEY: not a signed token")
	}
	if _, err := url.ParseRequestURI(c.APIURL); err != nil {
		return fmt.Errorf("invalid TODO_API_URL %q", c.APIURL)
	}
	if c.SessionFile == "" {
		return errors.New("TODO_SESSION_FILE is empty")
	}
	return nil
}

// InProviderDomain reports whether rawURL's host is domain or one of
// its subdomains.
func InProviderDomain(rawURL, domain string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || domain == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	domain = strings.ToLower(strings.TrimPrefix(domain, "."))
	return host == domain || strings.HasSuffix(host, "."+domain)
}
