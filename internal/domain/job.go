package domain

import "time"

// JobKind is the type of confidential computation submitted for a game.
type JobKind string

const (
	JobInitGame JobKind = "init_game"
	JobJoinGame JobKind = "join_game"
)

// JobStatus is the two-phase lifecycle of a computation job record. The
// external service does not require the caller to track jobs; the explicit
// record exists so callback application is idempotent and observable.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobCompleted JobStatus = "completed"
)

// JobOutcome is the terminal outcome reported by the service's callback.
type JobOutcome string

const (
	JobSuccess JobOutcome = "success"
	JobAborted JobOutcome = "aborted"
)

// ComputeJob is one asynchronous unit of work submitted to the
// confidential-computation service. JobID is the caller-chosen unique offset;
// a colliding submission is rejected before anything is sent.
type ComputeJob struct {
	JobID   uint64     `json:"job_id"`
	Kind    JobKind    `json:"kind"`
	GameID  uint64     `json:"game_id"`
	Status  JobStatus  `json:"status"`
	Outcome JobOutcome `json:"outcome,omitempty"` // set once completed

	SubmittedAt time.Time  `json:"submitted_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
