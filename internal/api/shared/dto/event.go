package dto

import (
	"encoding/json"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
)

// EventLogResponse represents a raw applied event
type EventLogResponse struct {
	TxHash          string          `json:"tx_hash"`
	LogIndex        uint64          `json:"log_index"`
	BlockNumber     uint64          `json:"block_number"`
	ContractAddress string          `json:"contract_address"`
	Kind            string          `json:"kind"`
	NaturalKey      string          `json:"natural_key"`
	Payload         json.RawMessage `json:"payload"`
}

// EventLogListResponse represents a page of event logs
type EventLogListResponse struct {
	Events []EventLogResponse `json:"events"`
	Offset *int               `json:"offset,omitempty"`
}

// MapEventLogToDTO maps an event log to its response
func MapEventLogToDTO(l domain.EventLog) EventLogResponse {
	payload := json.RawMessage(l.Payload)
	if len(payload) == 0 || !json.Valid(payload) {
		payload = json.RawMessage("null")
	}
	return EventLogResponse{
		TxHash:          l.TxHash,
		LogIndex:        l.LogIndex,
		BlockNumber:     l.BlockNumber,
		ContractAddress: l.ContractAddress,
		Kind:            string(l.Kind),
		NaturalKey:      l.NaturalKey,
		Payload:         payload,
	}
}
