package ingest

import (
	"time"

	"github.com/pkg/errors"
)

// ErrSourceMissing marks a dataset whose source file is absent. It is never
// fatal to a run.
var ErrSourceMissing = errors.New("source file missing")

// Kind classifies a dataset load.
type Kind int

const (
	Succeeded Kind = iota
	SkippedMissingFile
	Failed
)

func (k Kind) String() string {
	switch k {
	case Succeeded:
		return "succeeded"
	case SkippedMissingFile:
		return "skipped_missing_file"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of loading one dataset.
type Outcome struct {
	Dataset string
	Table   string // schema-qualified target
	File    string // resolved source path
	Kind    Kind
	Err     error

	Rows             int64
	NullifiedDates   int
	NullifiedNumbers int
	MissingColumns   []string
	DroppedColumns   []string

	// Checksum is the xxh3 hash of the source bytes; zero unless the file
	// was read.
	Checksum uint64
	Elapsed  time.Duration
}
