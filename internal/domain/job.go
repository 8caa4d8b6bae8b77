package domain

import "time"

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusAnalyzing  JobStatus = "analyzing"
	JobStatusGenerating JobStatus = "generating"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// statusRank orders the forward path. failed is handled separately in
// CanTransition because it terminates any non-terminal state.
var statusRank = map[JobStatus]int{
	JobStatusPending:    0,
	JobStatusAnalyzing:  1,
	JobStatusGenerating: 2,
	JobStatusCompleted:  3,
}

// CanTransition reports whether a job may move between the two statuses.
// Statuses only advance along pending → analyzing → generating → completed.
func CanTransition(from, to JobStatus) bool {
	if from == to {
		return false
	}
	if from.IsTerminal() {
		return false
	}
	if to == JobStatusFailed {
		return true
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank == fromRank+1
}

// IsTerminal reports whether a status admits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ImageRef identifies an image either by inline bytes or by a remote URL.
// Exactly one of Data and URL is expected to be set.
type ImageRef struct {
	URL  string
	Data []byte
	MIME string
	Name string
}

// Inline reports whether the reference carries the image bytes directly.
func (r ImageRef) Inline() bool {
	return len(r.Data) > 0
}

// Empty reports whether the reference identifies nothing at all.
func (r ImageRef) Empty() bool {
	return len(r.Data) == 0 && r.URL == ""
}

// Clone returns a copy whose byte slice does not alias the original.
func (r ImageRef) Clone() ImageRef {
	out := r
	if len(r.Data) > 0 {
		out.Data = append([]byte(nil), r.Data...)
	}
	return out
}

// Job tracks one end-to-end image-to-video generation request.
type Job struct {
	ID               string
	ProductName      string
	SourceImage      ImageRef
	AdditionalImages []ImageRef
	HostedImageURL   string
	HostedExtraURLs  []string
	Description      string
	VideoPrompt      string
	VideoPayload     []byte
	VideoMIME        string
	Status           JobStatus
	FailureReason    string
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// JobPatch describes a partial update applied by JobStore.Update. Nil fields
// are left untouched.
type JobPatch struct {
	HostedImageURL  *string
	HostedExtraURLs []string
	Description     *string
	VideoPrompt     *string
	VideoPayload    []byte
	VideoMIME       *string
	Status          *JobStatus
	FailureReason   *string
	ErrorMessage    *string
}
