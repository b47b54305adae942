package objects

import "time"

// ExportJob is one queued CSV export. It is written once and never modified.
type ExportJob struct {
	JobID     string    `json:"jobId"`
	UserID    string    `json:"userId"`
	ListName  string    `json:"listName"`
	Email     string    `json:"email"`
	RecordIDs []int64   `json:"rowIds"`
	CreatedAt time.Time `json:"createdAt"`
}

// DeadLetter marks a failed-lane job whose retry also failed.
type DeadLetter struct {
	JobID    string    `json:"jobId"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failedAt"`
}

type QueueStats struct {
	Pending int `json:"pending"`
	Failed  int `json:"failed"`
	Dead    int `json:"dead"`
}

type DrainResult struct {
	Processed    int `json:"processed"`
	Relocated    int `json:"relocated"`
	DeadLettered int `json:"deadLettered"`
}

// SweepRun records one export sweep for the history endpoint.
type SweepRun struct {
	StartedAt time.Time `json:"startedAt"`
	Elapsed   string    `json:"elapsed"`
	Error     string    `json:"error,omitempty"`

	DrainResult
}
