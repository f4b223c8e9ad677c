package job

import "time"

// Stage names the pipeline stage a job is currently in. Stage order is
// fixed; each stage has a progress watermark reported to status pollers.
type Stage string

const (
	StageQueued             Stage = "queued"
	StageStoring            Stage = "storing"
	StageExtractingText     Stage = "extracting_text"
	StageCleaning           Stage = "cleaning"
	StageChunking           Stage = "chunking"
	StageExtractingMetadata Stage = "extracting_metadata"
	StageEmbedding          Stage = "embedding"
	StagePersisting         Stage = "persisting"
	StageCompleted          Stage = "completed"
	StageError              Stage = "error"
)

// Watermark returns the progress percentage associated with entering the
// stage. The embedding stage advances linearly from its watermark up to the
// persisting watermark as fragments complete.
func (s Stage) Watermark() int {
	switch s {
	case StageStoring:
		return 10
	case StageExtractingText:
		return 20
	case StageCleaning:
		return 30
	case StageChunking:
		return 40
	case StageExtractingMetadata:
		return 50
	case StageEmbedding:
		return 60
	case StagePersisting:
		return 95
	case StageCompleted:
		return 100
	default:
		return 0
	}
}

// EmbeddingCeiling is the upper bound of the embedding progress band.
// Per-fragment progress moves from the embedding watermark up to here;
// the persisting watermark (95) is only reached on entering that stage.
const EmbeddingCeiling = 90

// Terminal reports whether the stage is final.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageError
}

// Job is the transient execution record mirroring one document's pipeline
// progress. Once a job is terminal it is never mutated again.
type Job struct {
	ID           string    `json:"id"`
	DocumentID   string    `json:"document_id"`
	Stage        Stage     `json:"stage"`
	Progress     int       `json:"progress"`
	RetryCount   int       `json:"retry_count"`
	ErrorSummary *string   `json:"error_summary,omitempty"`
	TempPath     string    `json:"-"`
	Filename     string    `json:"-"`
	ContentKind  string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StatusResponse is the outward job-status payload.
type StatusResponse struct {
	JobID        string  `json:"job_id"`
	Stage        Stage   `json:"stage"`
	Progress     int     `json:"progress"`
	DocumentID   string  `json:"document_id,omitempty"`
	ErrorSummary *string `json:"error_summary,omitempty"`
	RetryCount   int     `json:"retry_count"`
}
