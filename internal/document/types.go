package document

import "time"

// Status is the lifecycle state of a document.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// ContentKind identifies the accepted upload formats.
type ContentKind string

const (
	KindPDF  ContentKind = "pdf"
	KindJPEG ContentKind = "jpeg"
)

// Categories is the closed set of document types the classifier may assign.
// Anything else falls back to CategoryOther.
var Categories = []string{
	"Oficio",
	"Oficio Múltiple",
	"Resolución Directorial",
	"Informe",
	"Solicitud",
	"Memorándum",
	"Acta",
	"Varios",
}

// CategoryOther is the fallback classification.
const CategoryOther = "Varios"

// ValidCategory reports whether t is one of the allowed document types.
func ValidCategory(t string) bool {
	for _, c := range Categories {
		if c == t {
			return true
		}
	}
	return false
}

// Metadata holds the classification fields extracted from a document.
// Every field is individually nullable; the store only persists them as a
// unit when a document completes.
type Metadata struct {
	DocType  *string  `json:"doc_type"`
	Topic    *string  `json:"topic"`
	DocDate  *string  `json:"doc_date"` // YYYY-MM-DD
	Entities []string `json:"entities"`
	Summary  *string  `json:"summary"`
}

// Document is one ingested file and its derived metadata.
type Document struct {
	ID          string      `json:"id"`
	Filename    string      `json:"filename"`
	StorageURL  string      `json:"storage_url"`
	ObjectKey   string      `json:"object_key"`
	ContentKind ContentKind `json:"content_kind"`
	SizeBytes   int64       `json:"size_bytes"`
	NumPages    *int        `json:"num_pages"`
	Metadata    Metadata    `json:"metadata"`
	Status      Status      `json:"status"`
	ErrorDetail *string     `json:"error_detail"`
	UploadedBy  *string     `json:"uploaded_by,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	ProcessedAt *time.Time  `json:"processed_at"`
}

// Fragment is one overlapping chunk of a document's cleaned text together
// with its embedding vector. Fragments are immutable once written.
type Fragment struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Content    string    `json:"content"`
	Position   int       `json:"position"`
	Embedding  []float32 `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListFilter controls which documents List returns.
type ListFilter struct {
	Status   Status
	DocType  string
	DateFrom string // YYYY-MM-DD, inclusive
	DateTo   string // YYYY-MM-DD, inclusive
	Limit    int
	Offset   int
}
