package syncer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Prefs are the persisted user preferences.
type Prefs struct {
	AutoSync  bool   `yaml:"autoSync"`
	ServerURL string `yaml:"serverUrl,omitempty"`
	Token     string `yaml:"token,omitempty"`
}

// DefaultPrefs returns the preferences used when none are stored.
func DefaultPrefs() Prefs {
	return Prefs{AutoSync: true}
}

// PrefsFile stores Prefs as YAML at Path.
type PrefsFile struct {
	Path string
}

// Load reads the preferences. A missing file yields DefaultPrefs.
func (p *PrefsFile) Load() (Prefs, error) {
	prefs := DefaultPrefs()
	data, err := os.ReadFile(p.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return prefs, nil
	}
	if err != nil {
		return prefs, fmt.Errorf("read prefs: %w", err)
	}
	if err := yaml.Unmarshal(data, &prefs); err != nil {
		return DefaultPrefs(), fmt.Errorf("parse prefs %s: %w", p.Path, err)
	}
	return prefs, nil
}

// Save writes the preferences, creating the parent directory. The file may
// hold a session token so it is written owner-only.
func (p *PrefsFile) Save(prefs Prefs) error {
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o700); err != nil {
		return fmt.Errorf("save prefs: %w", err)
	}
	data, err := yaml.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode prefs: %w", err)
	}

	tmp := p.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("save prefs: %w", err)
	}
	if err := os.Rename(tmp, p.Path); err != nil {
		return fmt.Errorf("save prefs: %w", err)
	}
	return nil
}

// Update loads the preferences, applies fn and saves the result.
func (p *PrefsFile) Update(fn func(*Prefs)) error {
	prefs, err := p.Load()
	if err != nil {
		return err
	}
	fn(&prefs)
	return p.Save(prefs)
}
