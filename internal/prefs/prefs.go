// Package prefs handles snipsync command line preferences.
// Preferences are stored in ~/.config/snipsync/prefs.toml.
package prefs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
)

// Prefs holds user preferences for the command line.
type Prefs struct {
	PageSize int    `toml:"page_size" json:"pageSize"`
	SortBy   string `toml:"sort_by" json:"sortBy"`
	SortDir  string `toml:"sort_dir" json:"sortDir"`
	Output   string `toml:"output" json:"output"`
}

const (
	defaultPrefsPath = "~/.config/snipsync/prefs.toml"
	defaultPageSize  = 10
	defaultSortDir   = "asc"
)

// Defaults returns the preferences used when no file exists.
func Defaults() Prefs {
	return Prefs{PageSize: defaultPageSize, SortDir: defaultSortDir, Output: OutputText}
}

// DefaultPath returns the default preferences file path.
func DefaultPath() string {
	return defaultPrefsPath
}

// Load reads preferences from the given path, falling back to defaults if
// missing. A malformed file is reported so the user can fix it.
func Load(path string) (Prefs, error) {
	prefs := Defaults()

	resolved, err := resolvePath(path)
	if err != nil {
		return prefs, nil
	}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return prefs, nil
		}
		return prefs, fmt.Errorf("open prefs: %w", err)
	}
	defer func() { _ = file.Close() }()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return prefs, fmt.Errorf("read prefs: %w", err)
	}

	if err := toml.Unmarshal(bytes, &prefs); err != nil {
		return Defaults(), fmt.Errorf("parse prefs %s: %w", resolved, err)
	}

	return prefs.normalize(), nil
}

func (p Prefs) normalize() Prefs {
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	p.SortBy = strings.ToLower(strings.TrimSpace(p.SortBy))
	switch strings.ToLower(strings.TrimSpace(p.SortDir)) {
	case "desc":
		p.SortDir = "desc"
	default:
		p.SortDir = defaultSortDir
	}
	switch strings.ToLower(strings.TrimSpace(p.Output)) {
	case OutputJSON:
		p.Output = OutputJSON
	default:
		p.Output = OutputText
	}
	return p
}

// Save writes preferences to the given path, creating directories as needed.
func Save(path string, p Prefs) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	bytes, err := toml.Marshal(p.normalize())
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	if err := os.WriteFile(resolved, bytes, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}

	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultPrefsPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
