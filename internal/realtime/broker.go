package realtime

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Publisher delivers an invalidation signal for a topic to all subscribers,
// wherever they are connected.
type Publisher interface {
	Publish(ctx context.Context, topic string) error
}

// LocalBroker publishes straight into a hub. It only reaches subscribers of
// this process, which is enough for a single instance.
type LocalBroker struct {
	Hub *Hub
}

// Publish implements Publisher.
func (b *LocalBroker) Publish(ctx context.Context, topic string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.Hub.Broadcast(topic)
	return nil
}

// Fingerprint returns a short stable identifier for a topic that can be logged
// without disclosing the slug itself.
func Fingerprint(topic string) string {
	sum := sha256.Sum256([]byte(topic))
	return hex.EncodeToString(sum[:6])
}
