package model

import (
	"encoding/json"
	"time"
)

// Payloads pushed to the Redis persistence queues and drained into
// PostgreSQL by the workers.

// CheatQueueItem is one cheat log entry bound for the audit table.
type CheatQueueItem struct {
	SessionID string    `json:"session_id"`
	Kind      CheatKind `json:"kind"`
	Count     int       `json:"count"`
	When      time.Time `json:"when"`
}

// SnapshotQueueItem mirrors a progress save or, when Deleted, its removal.
type SnapshotQueueItem struct {
	DeviceID string          `json:"device_id"`
	TestCode string          `json:"test_code"`
	Deleted  bool            `json:"deleted,omitempty"`
	Snapshot json.RawMessage `json:"snapshot,omitempty"`
	SavedAt  time.Time       `json:"saved_at"`
}

// ResultQueueItem carries a finished session's record.
type ResultQueueItem struct {
	ResultCode string          `json:"result_code"`
	SessionID  string          `json:"session_id"`
	DeviceID   string          `json:"device_id"`
	TestCode   string          `json:"test_code"`
	Student    string          `json:"student"`
	Score      float64         `json:"score"`
	Forced     bool            `json:"forced"`
	FinishedAt time.Time       `json:"finished_at"`
	Record     json.RawMessage `json:"record"`
}

// OrderQueueItem records the shuffled question order a session was served,
// as original catalog indexes.
type OrderQueueItem struct {
	SessionID string    `json:"session_id"`
	DeviceID  string    `json:"device_id"`
	TestCode  string    `json:"test_code"`
	Order     []int     `json:"order"`
	StartedAt time.Time `json:"started_at"`
}
