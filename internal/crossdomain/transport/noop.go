// Package transport holds delivery implementations for cross-domain sync
// traffic. How messages are physically relayed (and how the channel
// authenticates its peers) is the transport's concern; the sync service only
// packages payloads and verifies claimed authorities on receipt.
package transport

import (
	"context"
	"fmt"
	"sync/atomic"

	"trustgate/internal/crossdomain"
	id "trustgate/pkg/domain"
)

// Noop accepts deliveries and drops them. Used when no broker is configured;
// publishing still succeeds so the feedback loop stays exercised.
type Noop struct {
	seq atomic.Int64
}

// NewNoop creates a drop-everything transport.
func NewNoop() *Noop {
	return &Noop{}
}

// Deliver drops the payload and fabricates a handle.
func (n *Noop) Deliver(ctx context.Context, domain id.DomainID, payload []byte) (crossdomain.MessageHandle, error) {
	seq := n.seq.Add(1)
	return crossdomain.MessageHandle(fmt.Sprintf("noop/%s/%d", domain, seq)), nil
}

var _ crossdomain.Transport = (*Noop)(nil)
