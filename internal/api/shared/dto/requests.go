package dto

// TriggerReplayRequest represents the body of POST /admin/replays
type TriggerReplayRequest struct {
	FromBlock uint64 `json:"from_block"`
	// ToBlock zero replays up to the chain head
	ToBlock   uint64 `json:"to_block"`
	ChunkSize uint64 `json:"chunk_size"`
}
