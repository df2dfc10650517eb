package model

// WebSocket event types
const (
	WSEventQueueChanged   = "queue_changed"
	WSEventHistoryChanged = "history_changed"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSQueueChanged carries a full queue snapshot. Subscribers receive
// whole-state events, not deltas; both lists are bounded so payload
// size stays small.
type WSQueueChanged struct {
	Type         string `json:"type"`
	Jobs         []Job  `json:"jobs"`
	IsProcessing bool   `json:"isProcessing"`
}

// WSHistoryChanged carries a full ledger snapshot
type WSHistoryChanged struct {
	Type    string         `json:"type"`
	Entries []HistoryEntry `json:"entries"`
}
