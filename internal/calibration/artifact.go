package calibration

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ayusman/lookout/internal/aoi"
)

// ArtifactVersion is the calibration file layout version.
const ArtifactVersion = 1

// FingerprintLen is the number of hex characters in a fingerprint.
const FingerprintLen = 12

// Artifact is the persisted calibration record, one per profile.
type Artifact struct {
	Version     int          `json:"version"`
	ProfileName string       `json:"profile_name"`
	CreatedAt   time.Time    `json:"created_at"`
	GazeModel   Params       `json:"gaze_model"`
	RMSError    float64      `json:"rms_error"`
	AOIPolygon  [][2]float64 `json:"aoi_polygon"`
}

// Fingerprint returns a short hash of the artifact's canonical JSON form
// (object keys sorted). Sessions record it to detect stale calibrations.
func (a Artifact) Fingerprint() (string, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("marshal artifact: %w", err)
	}

	// Re-encoding through a generic value sorts object keys.
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", fmt.Errorf("canonicalize artifact: %w", err)
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("canonicalize artifact: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:FingerprintLen], nil
}

// Calibration rebuilds the live calibration from the artifact.
func (a Artifact) Calibration() (*Calibration, error) {
	if a.Version != ArtifactVersion {
		return nil, fmt.Errorf("unsupported calibration version %d", a.Version)
	}
	model, err := FromParams(a.GazeModel)
	if err != nil {
		return nil, fmt.Errorf("gaze model: %w", err)
	}
	fp, err := a.Fingerprint()
	if err != nil {
		return nil, err
	}
	return &Calibration{
		Model:       model,
		AOI:         aoi.FromPairs(a.AOIPolygon),
		RMSError:    a.RMSError,
		ProfileName: a.ProfileName,
		CreatedAt:   a.CreatedAt,
		fingerprint: fp,
	}, nil
}

// Calibration is a fitted model plus the area of interest it classifies against.
type Calibration struct {
	Model       *Model
	AOI         aoi.Polygon
	RMSError    float64
	ProfileName string
	CreatedAt   time.Time

	fingerprint string
}

// Valid reports whether the calibration can drive a session.
func (c *Calibration) Valid() bool {
	return c != nil && c.Model != nil && c.Model.Fitted() && c.AOI.Valid()
}

// Artifact returns the persisted form.
func (c *Calibration) Artifact() (Artifact, error) {
	params, err := c.Model.Params()
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{
		Version:     ArtifactVersion,
		ProfileName: c.ProfileName,
		CreatedAt:   c.CreatedAt,
		GazeModel:   params,
		RMSError:    c.RMSError,
		AOIPolygon:  c.AOI.Pairs(),
	}, nil
}

// Fingerprint returns the artifact fingerprint, computing it on first use.
func (c *Calibration) Fingerprint() (string, error) {
	if c.fingerprint != "" {
		return c.fingerprint, nil
	}
	a, err := c.Artifact()
	if err != nil {
		return "", err
	}
	fp, err := a.Fingerprint()
	if err != nil {
		return "", err
	}
	c.fingerprint = fp
	return fp, nil
}
