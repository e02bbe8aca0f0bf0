package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrInsecurePermissions is returned when the credentials file is
// readable by group or others.
var ErrInsecurePermissions = fmt.Errorf("credentials file has insecure permissions")

// Credentials holds per-provider API keys loaded from credentials.toml.
type Credentials struct {
	providers map[string]string
}

// CredentialPaths returns the credential file locations in priority order.
func CredentialPaths() []string {
	paths := []string{"credentials.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "memokit", "credentials.toml"))
	}
	return paths
}

// LoadCredentials loads API keys from the first available standard
// location. A missing file is not an error; keys then resolve from the
// environment only.
func LoadCredentials() (*Credentials, string, error) {
	for _, path := range CredentialPaths() {
		if _, err := os.Stat(path); err == nil {
			creds, err := LoadCredentialsFile(path)
			return creds, path, err
		}
	}
	return &Credentials{}, "", nil
}

// LoadCredentialsFile loads API keys from a specific file.
// The file must be owner read-only (0400) on Unix.
func LoadCredentialsFile(path string) (*Credentials, error) {
	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if mode := info.Mode().Perm(); mode != 0400 {
			return nil, fmt.Errorf("%w: %s has mode %04o (must be 0400)",
				ErrInsecurePermissions, path, mode)
		}
	}

	var raw map[string]struct {
		APIKey string `toml:"api_key"`
	}
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("decoding credentials %s: %w", path, err)
	}

	creds := &Credentials{providers: make(map[string]string)}
	for provider, section := range raw {
		if section.APIKey != "" {
			creds.providers[strings.ToLower(provider)] = section.APIKey
		}
	}
	return creds, nil
}

// APIKey returns the key for a provider.
// Priority: [provider] section, then environment variable.
func (c *Credentials) APIKey(provider string) string {
	provider = strings.ToLower(provider)
	if c != nil {
		if key, ok := c.providers[provider]; ok {
			return key
		}
	}
	return os.Getenv(envVarForProvider(provider))
}

func envVarForProvider(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "openrouter":
		return "OPENROUTER_API_KEY"
	case "google":
		return "GOOGLE_API_KEY"
	default:
		return strings.ToUpper(strings.ReplaceAll(provider, "-", "_")) + "_API_KEY"
	}
}
