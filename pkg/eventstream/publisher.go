// Package eventstream defines the collection change events kbase emits and
// the publisher contract their transports implement.
package eventstream

import "context"

// Publisher publishes collection events to an event stream backend.
type Publisher interface {
	Publish(ctx context.Context, event *CollectionEvent) error
	Close() error
}
