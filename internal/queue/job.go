package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobVersion is bumped whenever the payload shape changes; the worker
// rejects versions it does not understand instead of guessing.
const JobVersion = 1

// BatchJob asks the worker to analyze one window of chats.
type BatchJob struct {
	JobID       string    `json:"jobId"`
	WindowStart time.Time `json:"windowStart"`
	WindowEnd   time.Time `json:"windowEnd"`
	MaxChats    int       `json:"maxChats,omitempty"`
	EnqueuedAt  time.Time `json:"enqueuedAt"`
	Version     int       `json:"version"`
}

// NewBatchJob builds a job for the given window with a fresh id.
func NewBatchJob(windowStart, windowEnd time.Time, maxChats int) BatchJob {
	return BatchJob{
		JobID:       uuid.NewString(),
		WindowStart: windowStart.UTC(),
		WindowEnd:   windowEnd.UTC(),
		MaxChats:    maxChats,
		EnqueuedAt:  time.Now().UTC(),
		Version:     JobVersion,
	}
}

// Validate checks the fields the worker depends on.
func (j BatchJob) Validate() error {
	if j.JobID == "" {
		return errors.New("job id is required")
	}
	if j.Version != JobVersion {
		return fmt.Errorf("unsupported job version %d", j.Version)
	}
	if j.WindowStart.IsZero() || j.WindowEnd.IsZero() {
		return errors.New("job window is required")
	}
	if !j.WindowEnd.After(j.WindowStart) {
		return errors.New("job window end must be after start")
	}
	return nil
}

// EncodeJob returns the JSON representation of a job.
func EncodeJob(job BatchJob) ([]byte, error) {
	return json.Marshal(job)
}

// DecodeJob parses a JSON payload into a BatchJob.
func DecodeJob(payload []byte) (BatchJob, error) {
	var job BatchJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return BatchJob{}, err
	}
	return job, nil
}
