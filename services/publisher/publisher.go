package publisher

import (
	"context"

	"yoktez/tezworker/internal/thesis"
)

// Publisher delivers newly discovered theses to downstream consumers.
type Publisher interface {
	// Publish delivers a single thesis summary
	Publish(ctx context.Context, summary thesis.Summary) error

	// TrimStreams caps retained stream length
	TrimStreams(ctx context.Context) error

	// Close releases the connection
	Close() error
}
