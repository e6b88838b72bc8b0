// Package config loads the CLI's settings. Settings live in a YAML file
// under the user's config directory and individual values can be
// overridden through environment variables.
package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gopkg.in/yaml.v2"
)

const (
	appDirName     = "notemirror"
	configFilename = "config.yaml"

	driveFileScope = "https://www.googleapis.com/auth/drive.file"
	oobRedirectURL = "urn:ietf:wg:oauth:2.0:oob"

	defaultAutoSyncMinutes = 15
)

// Config holds the notemirror CLI configuration.
type Config struct {
	NotesDir        string `yaml:"notesDir"`
	RootFolderName  string `yaml:"rootFolder"`
	AutoSyncMinutes int    `yaml:"autoSyncMinutes"`
	UploadWorkers   int    `yaml:"uploadWorkers"`
	ClientID        string `yaml:"clientId"`
	ClientSecret    string `yaml:"clientSecret"`
}

// DefaultDir returns the directory that holds the config file, the token
// file and the sync state file.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "resolving user config directory")
	}

	return filepath.Join(base, appDirName), nil
}

// Load reads the config file in dir, if present, and applies environment
// overrides on top. A missing config file is not an error; defaults and
// the environment are enough to run.
func Load(dir string) (Config, error) {
	cfg := Config{
		AutoSyncMinutes: defaultAutoSyncMinutes,
	}

	b, err := os.ReadFile(filepath.Join(dir, configFilename))
	if err != nil && !os.IsNotExist(err) {
		return cfg, errors.Wrap(err, "reading config file")
	}
	if err == nil {
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, errors.Wrap(err, "unmarshalling config")
		}
	}

	if v := os.Getenv("NOTEMIRROR_NOTES_DIR"); v != "" {
		cfg.NotesDir = v
	}
	if v := os.Getenv("NOTEMIRROR_ROOT_FOLDER"); v != "" {
		cfg.RootFolderName = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_ID"); v != "" {
		cfg.ClientID = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_SECRET"); v != "" {
		cfg.ClientSecret = v
	}

	if cfg.NotesDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg, errors.Wrap(err, "resolving home directory")
		}
		cfg.NotesDir = filepath.Join(home, "Notes")
	}
	if cfg.AutoSyncMinutes <= 0 {
		cfg.AutoSyncMinutes = defaultAutoSyncMinutes
	}

	return cfg, nil
}

// Write persists the config to dir, creating the directory if needed.
// The file holds the OAuth client secret, so it is not group readable.
func Write(dir string, cfg Config) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.Wrap(err, "creating config directory")
	}

	b, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshalling config into YAML")
	}

	if err := os.WriteFile(filepath.Join(dir, configFilename), b, 0600); err != nil {
		return errors.Wrap(err, "writing the config file")
	}

	return nil
}

// OAuth builds the oauth2 client config for the Drive file scope using
// the out-of-band redirect flow.
func (c Config) OAuth() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  oobRedirectURL,
		Scopes:       []string{driveFileScope},
	}
}
