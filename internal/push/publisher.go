// Package push is the boundary to the one-way cloud messaging channel
// that reaches remote game servers.
package push

import "context"

// Topic names on the messaging channel.
const (
	// TopicData carries relayed payloads and key distribution.
	TopicData = "RealTimeCommunications-Data"
	// TopicTest is used only for the startup credential probe.
	TopicTest = "RealTimeCommunications-Test"
)

// Publisher publishes a message to a topic on the push channel. The
// channel is broadcast-only; per-server filtering happens inside the
// message envelope, not at the transport.
type Publisher interface {
	Publish(ctx context.Context, topic, message string) error
}
