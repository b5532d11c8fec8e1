package jobs

import (
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

const (
	JobStatusPending    = "pending"
	JobStatusInProgress = "in_progress"
	JobStatusCompleted  = "completed"
)

const (
	JobTypeScan = "scan"
)

type Job struct {
	bun.BaseModel `bun:"table:jobs,alias:j"`

	ID         int         `bun:",pk,autoincrement" json:"id"`
	Type       string      `bun:",nullzero" json:"type"`
	Status     string      `bun:",nullzero" json:"status"`
	Data       string      `bun:",nullzero" json:"-"`
	DataParsed interface{} `bun:"-" json:"data"`
	Progress   int         `json:"progress"`
	ProcessID  *string     `json:"process_id,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// UnmarshalData parses the stored JSON payload into the typed struct for the
// job's type.
func (job *Job) UnmarshalData() error {
	switch job.Type {
	case JobTypeScan:
		job.DataParsed = &JobScanData{}
	default:
		return errors.Errorf("unknown job type %q", job.Type)
	}

	err := json.Unmarshal([]byte(job.Data), job.DataParsed)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// JobScanData is the payload of a scan job. LibraryPath overrides the
// configured library root when set. Full forces files that already have
// catalog records to be re-parsed instead of skipped.
type JobScanData struct {
	LibraryPath string `json:"library_path,omitempty"`
	Full        bool   `json:"full,omitempty"`
}
