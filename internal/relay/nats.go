package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSBroker fans traffic out through NATS core subjects, one subject per
// document.
type NATSBroker struct {
	nc     *nats.Conn
	prefix string
	owned  bool
}

// NewNATSBroker connects to the NATS server at url.
func NewNATSBroker(url string, opts ...nats.Option) (*NATSBroker, error) {
	opts = append([]nats.Option{
		nats.Name("gisdoc-relay"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	}, opts...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return &NATSBroker{nc: nc, prefix: "gisdoc.doc.", owned: true}, nil
}

// NewNATSBrokerFromConn wraps an existing connection. Close leaves the
// connection open.
func NewNATSBrokerFromConn(nc *nats.Conn) *NATSBroker {
	return &NATSBroker{nc: nc, prefix: "gisdoc.doc."}
}

// subject maps a document id onto a single subject token. Document ids are
// restricted to [A-Za-z0-9_-] by the server routes, so no escaping is
// needed.
func (b *NATSBroker) subject(docID string) string {
	return b.prefix + docID
}

// Publish sends payload to the document subject. NATS publish does not take
// a context, so ctx is only checked up front.
func (b *NATSBroker) Publish(ctx context.Context, docID string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	if err := b.nc.Publish(b.subject(docID), payload); err != nil {
		return fmt.Errorf("nats publish %s: %w", docID, err)
	}
	return nil
}

// Subscribe registers fn on the document subject and flushes so the
// subscription is active on the server before returning.
func (b *NATSBroker) Subscribe(ctx context.Context, docID string, fn func([]byte)) (func() error, error) {
	sub, err := b.nc.Subscribe(b.subject(docID), func(m *nats.Msg) { fn(m.Data) })
	if err != nil {
		return nil, fmt.Errorf("nats subscribe %s: %w", docID, err)
	}
	if err := b.nc.FlushTimeout(flushTimeout(ctx)); err != nil {
		sub.Unsubscribe()
		return nil, fmt.Errorf("nats subscribe %s: flush: %w", docID, err)
	}
	return sub.Unsubscribe, nil
}

func flushTimeout(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		return time.Until(deadline)
	}
	return 5 * time.Second
}

// Close drains the connection if the broker created it.
func (b *NATSBroker) Close() error {
	if !b.owned {
		return nil
	}
	return b.nc.Drain()
}
