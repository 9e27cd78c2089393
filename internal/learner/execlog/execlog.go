// Package execlog implements the execution log (C7 writes, C8 reads): one
// line-delimited JSON record per partial execution, appended through a
// Writer held for the lifetime of a job and closed on job end regardless of
// outcome, then opened read-only by the learner. The file is opened in plain
// append mode; no lock keeps another handle from appending at the same time.
package execlog

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/saad749/rheem/internal/rheemerrors"
	"github.com/saad749/rheem/platform"
)

// OperatorExecution is one operator's contribution to a partial execution
// record: its class (the variable space groups by this), the measured
// input/output cardinalities, and the correctness-probability confidence
// the cardinality estimator attached to each.
type OperatorExecution struct {
	OperatorClass    string    `json:"operatorClass"`
	InputCards       []uint64  `json:"inputCards,omitempty"`
	OutputCards      []uint64  `json:"outputCards,omitempty"`
	InputConfidence  []float64 `json:"inputConfidence,omitempty"`
	OutputConfidence []float64 `json:"outputConfidence,omitempty"`
}

// PartialExecution is one persisted record: the wall-clock duration of one
// driver stage, which platforms it touched, and the per-operator
// cardinalities observed during it.
type PartialExecution struct {
	JobID             string              `json:"jobId,omitempty"`
	DurationMs        float64             `json:"durationMs"`
	InvolvedPlatforms []string            `json:"involvedPlatforms"`
	Operators         []OperatorExecution `json:"operators"`
}

// Writer appends PartialExecution records to a log file opened in append
// mode. It serializes its own Appends but takes no file lock, so it is not
// exclusive against other writers of the same file. Close is idempotent so
// a driver can call it unconditionally in a defer regardless of how the job
// ended.
type Writer struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	closed bool
}

// OpenWriter opens (creating if necessary) path for appending. It takes no
// lock on the file.
func OpenWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, rheemerrors.Mark(rheemerrors.LogIOError, err)
	}
	return &Writer{file: f, writer: bufio.NewWriter(f)}, nil
}

// Append writes one record followed by a newline, flushing immediately so
// a crash loses at most the in-flight record, not the whole buffer.
func (w *Writer) Append(rec PartialExecution) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return rheemerrors.Newf(rheemerrors.LogIOError, "execlog: append after close")
	}
	enc := json.NewEncoder(w.writer)
	if err := enc.Encode(rec); err != nil {
		return rheemerrors.Mark(rheemerrors.LogIOError, err)
	}
	if err := w.writer.Flush(); err != nil {
		return rheemerrors.Mark(rheemerrors.LogIOError, err)
	}
	return nil
}

// Close flushes and closes the underlying file. Calling Close more than
// once is a no-op, matching the job-end semantics ("writes on job end
// regardless of outcome") where a deferred Close may run alongside an
// earlier explicit one.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return rheemerrors.Mark(rheemerrors.LogIOError, err)
	}
	return rheemerrors.Mark(rheemerrors.LogIOError, w.file.Close())
}

// FromPlatform converts a backend-reported partial execution into the
// persisted record shape, tagging it with the owning job's ID.
func FromPlatform(jobID string, p platform.PartialExecution) PartialExecution {
	ops := make([]OperatorExecution, len(p.Operators))
	for i, o := range p.Operators {
		ops[i] = OperatorExecution{
			OperatorClass:    o.OperatorClass,
			InputCards:       o.InputCards,
			OutputCards:      o.OutputCards,
			InputConfidence:  o.InputConfidence,
			OutputConfidence: o.OutputConfidence,
		}
	}
	return PartialExecution{
		JobID:             jobID,
		DurationMs:        p.DurationMs,
		InvolvedPlatforms: p.InvolvedPlatforms,
		Operators:         ops,
	}
}

// Reader reads PartialExecution records back out, read-only, the access
// mode C8 uses against a log a job has already finished writing.
type Reader struct {
	dec *json.Decoder
}

// OpenReader opens path read-only.
func OpenReader(path string) (*Reader, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, rheemerrors.Mark(rheemerrors.LogIOError, err)
	}
	return &Reader{dec: json.NewDecoder(f)}, f.Close, nil
}

// ReadAll consumes every remaining record.
func (r *Reader) ReadAll() ([]PartialExecution, error) {
	var out []PartialExecution
	for {
		var rec PartialExecution
		if err := r.dec.Decode(&rec); err != nil {
			if err == io.EOF {
				return out, nil
			}
			return out, rheemerrors.Mark(rheemerrors.LogIOError, err)
		}
		out = append(out, rec)
	}
}
