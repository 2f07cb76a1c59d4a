package profile

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/ayusman/lookout/internal/calibration"
)

func testArtifact(name string) calibration.Artifact {
	return calibration.Artifact{
		Version:     calibration.ArtifactVersion,
		ProfileName: name,
		CreatedAt:   time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC),
		GazeModel: calibration.Params{
			Kind:           calibration.ModelKind,
			Version:        calibration.ModelVersion,
			Degree:         1,
			Regularization: 1,
			X:              calibration.RegressorParams{Mean: []float64{0.1}, Scale: []float64{1}, Coef: []float64{0.3}, Intercept: 0.5},
			Y:              calibration.RegressorParams{Mean: []float64{0.1}, Scale: []float64{1}, Coef: []float64{0.1}, Intercept: 0.4},
		},
		RMSError:   0.0123,
		AOIPolygon: [][2]float64{{0.1, 0.1}, {0.9, 0.1}, {0.9, 0.9}, {0.1, 0.9}},
	}
}

func TestStore_SaveLoad(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "profiles"))
	want := testArtifact("pilot")

	path, err := s.Save(want)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if path != s.Path("pilot") {
		t.Errorf("Save() path = %q, want %q", path, s.Path("pilot"))
	}

	got, err := s.Load("pilot")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
	}
	got.CreatedAt = want.CreatedAt
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}

	fpWant, _ := want.Fingerprint()
	fpGot, _ := got.Fingerprint()
	if fpGot != fpWant {
		t.Errorf("fingerprint changed across save/load: %q vs %q", fpGot, fpWant)
	}
}

func TestStore_LoadNotFound(t *testing.T) {
	s := NewStore(t.TempDir())
	if _, err := s.Load("nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestStore_InvalidName(t *testing.T) {
	s := NewStore(t.TempDir())
	for _, name := range []string{"", "../etc", "a/b", ".hidden"} {
		if _, err := s.Save(testArtifact(name)); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Save(%q) error = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestStore_List(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)

	names, err := s.List()
	if err != nil || len(names) != 0 {
		t.Fatalf("List() on empty store = %v, %v", names, err)
	}

	for _, n := range []string{"zulu", "alpha"} {
		if _, err := s.Save(testArtifact(n)); err != nil {
			t.Fatal(err)
		}
	}
	// A directory without a calibration file is not a profile.
	os.MkdirAll(filepath.Join(root, "empty"), 0o755)

	names, err = s.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if !reflect.DeepEqual(names, []string{"alpha", "zulu"}) {
		t.Errorf("List() = %v, want [alpha zulu]", names)
	}
}

func TestStore_ListMissingRoot(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "absent"))
	names, err := s.List()
	if err != nil || len(names) != 0 {
		t.Errorf("List() = %v, %v; want empty, nil", names, err)
	}
}
