package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ProviderKey names an entry of the provider catalogue (e.g. "flux").
type ProviderKey string

// JobStatus enumerates prediction lifecycle states as reported by the provider.
type JobStatus string

const (
	JobStatusStarting   JobStatus = "starting"
	JobStatusProcessing JobStatus = "processing"
	JobStatusSucceeded  JobStatus = "succeeded"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCanceled   JobStatus = "canceled"
)

// IsTerminal reports whether no further status change can occur.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusCanceled:
		return true
	default:
		return false
	}
}

// DefaultFailureMessage is surfaced when a failed job carries no provider message.
const DefaultFailureMessage = "Generation failed."

// GenerationRequest is an immutable generation job description.
type GenerationRequest struct {
	Prompt         string
	NegativePrompt string
	Provider       ProviderKey
}

// CacheKey is the exact-match fingerprint of a GenerationRequest.
type CacheKey string

const cacheKeySeparator = "\x00"

// CacheKey joins provider, prompt and negative prompt. Values are not trimmed
// or case-folded; the separator only keeps field boundaries apart.
func (r GenerationRequest) CacheKey() CacheKey {
	return CacheKey(strings.Join([]string{string(r.Provider), r.Prompt, r.NegativePrompt}, cacheKeySeparator))
}

// Validate checks the request before any provider work happens. Prompts are
// passed through untouched, so only the empty string is rejected.
func (r GenerationRequest) Validate() error {
	if r.Prompt == "" {
		return InvalidInput("prompt is required")
	}
	return nil
}

// Output is a provider result: one URL or an ordered list of URLs. A single
// URL is encoded as a JSON string to mirror the provider payload.
type Output []string

// First returns the first URL or an empty string.
func (o Output) First() string {
	if len(o) == 0 {
		return ""
	}
	return o[0]
}

// MarshalJSON encodes single-element outputs as a bare string.
func (o Output) MarshalJSON() ([]byte, error) {
	if len(o) == 1 {
		return json.Marshal(o[0])
	}
	return json.Marshal([]string(o))
}

// UnmarshalJSON accepts null, a string, or an array of strings.
func (o *Output) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*o = nil
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*o = Output{single}
		return nil
	}
	if !strings.HasPrefix(trimmed, "[") {
		return errors.New("output: expected string or array")
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*o = Output(list)
	return nil
}

// Clone returns a copy that shares no backing array with o.
func (o Output) Clone() Output {
	if o == nil {
		return nil
	}
	return append(Output(nil), o...)
}

// JobHandle identifies an asynchronous prediction. The caller owns it.
type JobHandle struct {
	ID        string
	Status    JobStatus
	CreatedAt time.Time
}

// Submission is the result of submitting a job: either a terminal output or
// a handle to poll.
type Submission struct {
	Output Output
	Handle *JobHandle
	// Provider records which target accepted the job, for logging.
	Provider string
}

// Done reports whether the submission completed synchronously.
func (s Submission) Done() bool {
	return s.Handle == nil
}

// Snapshot is a single observation of a prediction.
type Snapshot struct {
	ID     string    `json:"id"`
	Status JobStatus `json:"status"`
	Output Output    `json:"output,omitempty"`
	Error  string    `json:"error,omitempty"`
}
