package metrics

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// FileSink persists every scalar as one JSON record per line under a
// per-run directory. Records carry the step so evaluation checkpoints
// can be replayed later.
type FileSink struct {
	dir string
	f   *os.File
	enc *json.Encoder
}

type scalarRecord struct {
	Step  int     `json:"step"`
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// NewFileSink creates baseDir/<run-id>/scalars.jsonl and returns a sink
// appending to it. The run id is random so repeated runs never clobber
// each other.
func NewFileSink(baseDir string) (*FileSink, error) {
	runID := uuid.NewString()[:8]
	dir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create run dir %s", dir)
	}
	f, err := os.Create(filepath.Join(dir, "scalars.jsonl"))
	if err != nil {
		return nil, errors.Wrap(err, "create scalars file")
	}
	return &FileSink{dir: dir, f: f, enc: json.NewEncoder(f)}, nil
}

// Dir returns the run directory this sink writes into.
func (s *FileSink) Dir() string { return s.dir }

func (s *FileSink) Scalar(name string, value float64, step int) {
	// Encoding onto an open file only fails on a broken disk; the
	// trainer should not abort for that, so the error is dropped here.
	_ = s.enc.Encode(scalarRecord{Step: step, Name: name, Value: value})
}

func (s *FileSink) Close() error {
	return s.f.Close()
}
