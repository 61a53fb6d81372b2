package ledger

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

const (
	TransactionIDPrefix = "txn_"
	RefundIDPrefix      = "refund_"
)

// IDGenerator produces identifiers that are unique per call, including
// under concurrent callers.
type IDGenerator interface {
	NewTransactionID() string
	NewRefundID() string
}

// UUIDGenerator produces random identifiers ("txn_<uuid>").
type UUIDGenerator struct{}

func (UUIDGenerator) NewTransactionID() string { return TransactionIDPrefix + uuid.NewString() }
func (UUIDGenerator) NewRefundID() string      { return RefundIDPrefix + uuid.NewString() }

// SequenceGenerator produces "txn_000001" style identifiers from one
// monotonic counter shared by transactions and refunds.
type SequenceGenerator struct {
	n atomic.Int64
}

func (g *SequenceGenerator) NewTransactionID() string {
	return fmt.Sprintf("%s%06d", TransactionIDPrefix, g.n.Add(1))
}

func (g *SequenceGenerator) NewRefundID() string {
	return fmt.Sprintf("%s%06d", RefundIDPrefix, g.n.Add(1))
}

// NewIDGenerator returns the generator for mode ("uuid" or "sequence").
func NewIDGenerator(mode string) (IDGenerator, error) {
	switch mode {
	case "", "uuid":
		return UUIDGenerator{}, nil
	case "sequence":
		return &SequenceGenerator{}, nil
	default:
		return nil, fmt.Errorf("unknown id mode %q", mode)
	}
}
