package store

import (
	"context"
	"time"

	"github.com/tripforge/placescout/internal/model"
)

// Store defines the persistence contract required by the orchestration core.
// Places are upserted one at a time; no cross-entity transactions are needed.
// The rate window is read-modify-written without a lock: last-writer-wins is
// acceptable because the calling process is the only consumer.
type Store interface {
	// Places
	GetPlace(ctx context.Context, id string) (*model.Place, error) // nil, nil when absent
	ListPlaces(ctx context.Context) ([]model.Place, error)
	UpsertPlace(ctx context.Context, p *model.Place) error

	// Analysis slots: intermediate results shared between pipeline phases,
	// keyed by task.
	SetAnalysisResult(ctx context.Context, taskKey string, data any) error
	// GetAnalysisResult unmarshals the slot into out and reports presence.
	GetAnalysisResult(ctx context.Context, taskKey string, out any) (bool, error)

	// Chunking run state
	GetChunking(ctx context.Context) (*model.ChunkState, error)
	SetChunking(ctx context.Context, cs *model.ChunkState) error
	ResetChunking(ctx context.Context) error

	// Notifications
	AddNotification(ctx context.Context, message string) (*model.Notification, error)
	UpdateNotification(ctx context.Context, id, message string) error
	DismissNotification(ctx context.Context, id string) error

	// Rate-limit windows: call timestamps per model tier.
	GetRateWindow(ctx context.Context, tier string) ([]time.Time, error)
	SetRateWindow(ctx context.Context, tier string, stamps []time.Time) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
