package recorder

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ayusman/lookout/internal/gaze"
)

// ReadMeta loads session_meta.json from dir.
func ReadMeta(dir string) (gaze.SessionMeta, error) {
	var meta gaze.SessionMeta
	err := ReadJSON(filepath.Join(dir, MetaFile), &meta)
	return meta, err
}

// ReadJSON decodes the JSON document at path into v.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ReadSamples parses samples.csv from dir. Rows cut short by an abnormal
// stop are ignored.
func ReadSamples(dir string) ([]gaze.Sample, error) {
	var out []gaze.Sample
	err := readRows(filepath.Join(dir, SamplesFile), len(sampleHeader), func(rec []string) error {
		mono, err := parseSeconds(rec[0])
		if err != nil {
			return err
		}
		wall, err := parseWall(rec[1])
		if err != nil {
			return err
		}
		x, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return err
		}
		y, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			return err
		}
		conf, err := strconv.ParseFloat(rec[4], 64)
		if err != nil {
			return err
		}
		state, err := gaze.ParseState(rec[5])
		if err != nil {
			return err
		}
		out = append(out, gaze.Sample{Mono: mono, Wall: wall, X: x, Y: y, Confidence: conf, State: state})
		return nil
	})
	return out, err
}

// ReadEvents parses events.csv from dir.
func ReadEvents(dir string) ([]gaze.TransitionEvent, error) {
	var out []gaze.TransitionEvent
	err := readRows(filepath.Join(dir, EventsFile), len(eventHeader), func(rec []string) error {
		from, err := gaze.ParseState(rec[0])
		if err != nil {
			return err
		}
		to, err := gaze.ParseState(rec[1])
		if err != nil {
			return err
		}
		start, err := parseSeconds(rec[2])
		if err != nil {
			return err
		}
		end, err := parseSeconds(rec[3])
		if err != nil {
			return err
		}
		out = append(out, gaze.TransitionEvent{From: from, To: to, Start: start, End: end})
		return nil
	})
	return out, err
}

func readRows(path string, width int, fn func([]string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("read header: %w", err)
	}

	line := 1
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		line++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				continue
			}
			return err
		}
		if len(rec) != width {
			continue
		}
		if err := fn(rec); err != nil {
			return fmt.Errorf("%s line %d: %w", filepath.Base(path), line, err)
		}
	}
}

func parseSeconds(s string) (time.Duration, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(v * float64(time.Second)).Round(time.Microsecond), nil
}

func parseWall(s string) (time.Time, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, err
	}
	sec := int64(v)
	nsec := int64((v - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).Round(time.Microsecond), nil
}
