package domain

import "time"

// EventType is the lifecycle event kind published for external consumers
type EventType string

const (
	EventGenerated          EventType = "generated"
	EventMinted             EventType = "minted"
	EventFinalizationFailed EventType = "finalization_failed"
)

// LifecycleEvent describes a state change of an assignment record
type LifecycleEvent struct {
	Type          EventType  `json:"type"`
	Identity      string     `json:"identity"`
	AssignedIndex int        `json:"assigned_index"`
	RarityTier    RarityTier `json:"rarity_tier"`
	ContentURI    string     `json:"content_uri,omitempty"`
	TxHash        string     `json:"tx_hash,omitempty"`
	BlockNumber   uint64     `json:"block_number,omitempty"`
	Error         string     `json:"error,omitempty"`
	Timestamp     time.Time  `json:"timestamp"`
}
