package domain

import (
	"fmt"
	"time"
)

// Metadata carries the four meeting attributes submitted with a recording.
type Metadata struct {
	CreatedDate  string `json:"created_date"`
	Creator      string `json:"creator"`
	CustomerName string `json:"customer_name"`
	MeetingPlace string `json:"meeting_place"`
}

// DynamicTitle is the display title attached to every analysis result.
func (m Metadata) DynamicTitle() string {
	return fmt.Sprintf("%s_%s_%s_%s_議事録", m.CreatedDate, m.Creator, m.CustomerName, m.MeetingPlace)
}

// UploadJob is one submitted recording plus its metadata. It lives for a
// single request and is consumed exactly once by the pipeline.
type UploadJob struct {
	Path     string
	Filename string
	MIMEType string
	Size     int64
	Meta     Metadata
}

// AudioSegment is a zero-based, ordered slice of the source audio,
// re-encoded as an independently decodable file. Segments are siblings;
// none owns another.
type AudioSegment struct {
	Index      int
	Start      time.Duration
	End        time.Duration
	Payload    []byte
	MIMEType   string
	SampleRate int
	Channels   int
}

func (s AudioSegment) Duration() time.Duration {
	return s.End - s.Start
}

// SegmentResult is the analyzer output for one segment, or for the whole
// file when no split happened.
type SegmentResult struct {
	Index             int      `json:"index"`
	Summary           string   `json:"summary"`
	ConfirmationItems []string `json:"confirmation_items"`
	Title             string   `json:"title"`
}

// MergedResult combines every SegmentResult of a job. It is handed to the
// editing surface and then to export; nothing about it is persisted.
type MergedResult struct {
	Summary           string   `json:"summary"`
	ConfirmationItems []string `json:"confirmation_items"`
	Title             string   `json:"dynamic_title"`
}

// ExportRequest is constructed fresh per export click.
type ExportRequest struct {
	Summary       string   `json:"summary"`
	SelectedItems []string `json:"selected_items"`
	Metadata      Metadata `json:"metadata"`
	Format        string   `json:"format"`
}

const (
	FormatWord = "word"
	FormatPDF  = "pdf"
)

// User is a stored credential record.
type User struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
}
