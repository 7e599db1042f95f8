// Package backplane carries broadcast frames between relay processes so
// clients connected to different instances share one chat room.
package backplane

import "context"

// Backplane publishes frames to every subscribed relay, including the
// publisher itself.
type Backplane interface {
	// Publish sends a frame to all subscribers.
	Publish(ctx context.Context, frame string) error
	// Subscribe calls deliver for every published frame until ctx is done.
	// It calls ready once the subscription is confirmed; frames published
	// before that are not delivered.
	Subscribe(ctx context.Context, deliver func(frame string), ready func()) error
	// Close releases the underlying connection.
	Close() error
}
