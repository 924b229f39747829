package dto

import "time"

// TriggerReplayResponse represents the started replay workflow
type TriggerReplayResponse struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
}

// ReplayStatusResponse represents the execution state of a replay workflow
type ReplayStatusResponse struct {
	WorkflowID    string     `json:"workflow_id"`
	RunID         string     `json:"run_id"`
	Status        string     `json:"status"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	CloseTime     *time.Time `json:"close_time,omitempty"`
	HistoryLength int64      `json:"history_length"`
}

// HealthResponse represents the health status of the API
type HealthResponse struct {
	Status     string `json:"status"`
	CurrentDay uint64 `json:"current_day"`
}
