// Package messaging publishes run events to an external stream.
package messaging

import "context"

// Publisher sends messages to a topic
type Publisher interface {
	Publish(ctx context.Context, data ...[]byte) error
}
