// Package profile stores calibration artifacts on disk, one directory per
// named profile: <root>/<name>/calibration.json.
package profile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/ayusman/lookout/internal/calibration"
	"github.com/ayusman/lookout/internal/log"
	"github.com/ayusman/lookout/internal/recorder"
)

// FileName is the calibration file inside a profile directory.
const FileName = "calibration.json"

var (
	// ErrNotFound is returned when a profile has no calibration file.
	ErrNotFound = errors.New("profile not found")
	// ErrInvalidName is returned for names that are not a single path element.
	ErrInvalidName = errors.New("invalid profile name")
)

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Store is a directory of calibration profiles.
type Store struct {
	root string
}

// NewStore returns a store rooted at dir. The directory is created on first save.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the store directory.
func (s *Store) Root() string {
	return s.root
}

// Path returns the calibration file path for name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.root, name, FileName)
}

// Save writes the artifact under its profile name and returns the file path.
func (s *Store) Save(a calibration.Artifact) (string, error) {
	if err := checkName(a.ProfileName); err != nil {
		return "", err
	}

	path := s.Path(a.ProfileName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create profile dir: %w", err)
	}
	if err := recorder.WriteJSON(path, a); err != nil {
		return "", fmt.Errorf("save profile %s: %w", a.ProfileName, err)
	}

	log.Info("calibration saved", "profile", a.ProfileName, "path", path)
	return path, nil
}

// Load reads the artifact for name.
func (s *Store) Load(name string) (calibration.Artifact, error) {
	var a calibration.Artifact
	if err := checkName(name); err != nil {
		return a, err
	}

	err := recorder.ReadJSON(s.Path(name), &a)
	if errors.Is(err, fs.ErrNotExist) {
		return a, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return a, fmt.Errorf("load profile %s: %w", name, err)
	}
	return a, nil
}

// List returns the sorted names of profiles that have a calibration file.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(s.Path(e.Name())); err == nil {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func checkName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
