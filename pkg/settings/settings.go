// Package settings manages persistent user settings for the newtcli CLI.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/newtron-network/newtcli/pkg/util"
)

// DefaultBundleDir is where vendor bundles live when nothing overrides it.
const DefaultBundleDir = "/etc/newtcli/bundles"

// Settings holds persistent user preferences
type Settings struct {
	// BundleDir overrides the default adapter bundle directory
	BundleDir string `json:"bundle_dir,omitempty"`

	// AuditLog is the audit log path; AuditBackend is "file" or "sqlite"
	AuditLog     string `json:"audit_log,omitempty"`
	AuditBackend string `json:"audit_backend,omitempty"`

	SSHUser string `json:"ssh_user,omitempty"`
	SSHKey  string `json:"ssh_key,omitempty"`

	// LockRedis is the address of the Redis server holding session locks.
	// Empty disables locking.
	LockRedis string `json:"lock_redis,omitempty"`

	LogLevel string `json:"log_level,omitempty"`
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	return filepath.Join(homeDir(), "settings.json")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".newtcli"
	}
	return filepath.Join(home, ".newtcli")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", util.ErrInvalidConfig, path, err)
	}
	return s, nil
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// GetBundleDir returns the bundle directory (with fallback)
func (s *Settings) GetBundleDir() string {
	if s.BundleDir != "" {
		return s.BundleDir
	}
	return DefaultBundleDir
}

// GetAuditLog returns the audit log path (with fallback)
func (s *Settings) GetAuditLog() string {
	if s.AuditLog != "" {
		return s.AuditLog
	}
	if s.AuditBackend == "sqlite" {
		return filepath.Join(homeDir(), "audit.db")
	}
	return filepath.Join(homeDir(), "audit.log")
}

// GetLogLevel returns the log level (with fallback)
func (s *Settings) GetLogLevel() string {
	if s.LogLevel != "" {
		return s.LogLevel
	}
	return "warn"
}

// fields maps the JSON key of each setting to its storage.
func (s *Settings) fields() map[string]*string {
	return map[string]*string{
		"bundle_dir":    &s.BundleDir,
		"audit_log":     &s.AuditLog,
		"audit_backend": &s.AuditBackend,
		"ssh_user":      &s.SSHUser,
		"ssh_key":       &s.SSHKey,
		"lock_redis":    &s.LockRedis,
		"log_level":     &s.LogLevel,
	}
}

// Keys returns the setting names accepted by Get and Set, sorted.
func (s *Settings) Keys() []string {
	var keys []string
	for k := range s.fields() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the stored value of a setting.
func (s *Settings) Get(key string) (string, error) {
	p, ok := s.fields()[key]
	if !ok {
		return "", fmt.Errorf("%w: unknown setting %q", util.ErrInvalidConfig, key)
	}
	return *p, nil
}

// Set validates and stores a setting. An empty value clears it.
func (s *Settings) Set(key, value string) error {
	p, ok := s.fields()[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", util.ErrInvalidConfig, key)
	}
	switch key {
	case "audit_backend":
		if value != "" && value != "file" && value != "sqlite" {
			return fmt.Errorf("%w: audit_backend must be file or sqlite", util.ErrInvalidConfig)
		}
	case "log_level":
		if value != "" {
			if err := util.ValidateLogLevel(value); err != nil {
				return fmt.Errorf("%w: %v", util.ErrInvalidConfig, err)
			}
		}
	}
	*p = value
	return nil
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}
