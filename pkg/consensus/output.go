// Package consensus defines the boundary to the BFT ordering layer. The
// transport itself is an external collaborator; a validator only consumes
// the ordered stream of certified transactions it emits.
package consensus

import (
	"github.com/gdex-labs/gdex/pkg/crypto"
)

// Certificate is the proof that a batch of transactions was totally
// ordered. Only the digest and round survive into the execution layer.
type Certificate struct {
	Digest crypto.Digest
	Round  uint64
}

// ExecutionIndices locate one transaction inside the ordered output.
// NextTransactionIndex wraps to zero when the certificate's batch is
// complete, which is the block boundary signal.
type ExecutionIndices struct {
	NextCertificateIndex uint64
	NextBatchIndex       uint64
	NextTransactionIndex uint64
}

// Output is one ordered transaction delivered to the execution layer.
type Output struct {
	Certificate           Certificate
	ExecutionIndices      ExecutionIndices
	SerializedTransaction []byte
}

// Driver is the black-box ordering layer: an ordered, bounded stream of
// outputs. Backpressure on the channel is the intended flow control - a
// slow executor blocks the driver.
type Driver interface {
	// Outputs never reorders; the channel closes on driver shutdown.
	Outputs() <-chan Output
}

// ChannelDriver adapts a plain channel to the Driver interface, used by the
// node wiring and throughout the test suites.
type ChannelDriver struct {
	Ch chan Output
}

func NewChannelDriver(buffer int) *ChannelDriver {
	return &ChannelDriver{Ch: make(chan Output, buffer)}
}

func (d *ChannelDriver) Outputs() <-chan Output { return d.Ch }
