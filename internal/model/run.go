package model

import "time"

// ChunkState tracks a chunked orchestration run. It exists only while a
// task's item count exceeds its chunk limit and is reset when the run
// completes or is cancelled.
type ChunkState struct {
	Active       bool      `json:"active"`
	TaskKey      string    `json:"task_key,omitempty"`
	CurrentChunk int       `json:"current_chunk"` // 1-based, monotonic, <= TotalChunks
	TotalChunks  int       `json:"total_chunks"`
	StartedAt    time.Time `json:"started_at,omitempty"`
}

// GeoCenter anchors radius filtering: a resolved location label plus an
// optional coordinate.
type GeoCenter struct {
	Label string  `json:"label"`
	Lat   float64 `json:"lat,omitempty"`
	Lng   float64 `json:"lng,omitempty"`
}

// HasCoords reports whether the center carries a usable coordinate.
func (g GeoCenter) HasCoords() bool {
	return g.Lat != 0 || g.Lng != 0
}

// NotificationStatus is the lifecycle state of a progress notification.
type NotificationStatus string

const (
	NotificationActive    NotificationStatus = "active"
	NotificationDone      NotificationStatus = "done"
	NotificationDismissed NotificationStatus = "dismissed"
)

// Notification is a durable progress message for long-running workflows.
type Notification struct {
	ID        string             `json:"id"`
	Message   string             `json:"message"`
	Status    NotificationStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// WorkflowStep declares one node of the static step dependency graph consumed
// by the external scheduler. The core only consumes resolved task ids.
type WorkflowStep struct {
	ID                      string   `yaml:"id" json:"id"`
	Requires                []string `yaml:"requires" json:"requires"`
	Mandatory               bool     `yaml:"mandatory" json:"mandatory"`
	RequiresUserInteraction bool     `yaml:"requires_user_interaction" json:"requires_user_interaction"`
}
