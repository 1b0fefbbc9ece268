// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pdiddy/scholars-harvest/pkg/types"
)

// Line is one JSON Lines entry.
type Line struct {
	RunID     string              `json:"run_id"`
	Status    types.OutcomeStatus `json:"status"`
	WrittenAt time.Time           `json:"written_at"`
	types.FetchOutcome
}

// JSONLSink appends one JSON object per outcome to a file.
type JSONLSink struct {
	runID string
	f     *os.File
	w     *bufio.Writer
	enc   *json.Encoder
}

// NewJSONLSink creates (or truncates) path.
func NewJSONLSink(path, runID string) (*JSONLSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	return &JSONLSink{runID: runID, f: f, w: w, enc: json.NewEncoder(w)}, nil
}

func (s *JSONLSink) Write(_ context.Context, out types.FetchOutcome) error {
	err := s.enc.Encode(Line{RunID: s.runID, Status: out.Status(), WrittenAt: time.Now().UTC(), FetchOutcome: out})
	if err == nil {
		err = s.w.Flush()
	}
	if err != nil {
		err = fmt.Errorf("writing outcome for %s: %w", out.Target.ID, err)
	}
	return observe(FormatJSONL, err)
}

func (s *JSONLSink) Close() error {
	return errors.Join(s.w.Flush(), s.f.Close())
}

// ReadJSONL decodes every line of a JSON Lines file written by JSONLSink.
func ReadJSONL(path string) ([]Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var lines []Line
	dec := json.NewDecoder(f)
	for dec.More() {
		var l Line
		if err := dec.Decode(&l); err != nil {
			return lines, fmt.Errorf("decoding %s: %w", path, err)
		}
		lines = append(lines, l)
	}
	return lines, nil
}
