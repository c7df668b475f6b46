package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// TransactionCounter is the slice of the RPC client the sequencer needs:
// the confirmed transaction count for an account.
type TransactionCounter interface {
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
}

// NonceSequencer serializes nonce allocation for one wallet. On-chain
// confirmation lags issuance, so the queried count alone would hand the same
// nonce to overlapping bid tasks; the local high-water mark keeps issuance
// strictly monotonic across them.
type NonceSequencer struct {
	mu         sync.Mutex
	counter    TransactionCounter
	account    common.Address
	lastIssued uint64
}

func NewNonceSequencer(counter TransactionCounter, account common.Address) *NonceSequencer {
	return &NonceSequencer{
		counter: counter,
		account: account,
	}
}

// Allocate returns the next nonce to use. The full read-compare-write
// sequence runs under one lock. If the ledger query fails the allocation
// fails and the high-water mark is left untouched; the caller must abort
// that bid attempt rather than retry inside the lock.
func (s *NonceSequencer) Allocate(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.counter.NonceAt(ctx, s.account, nil)
	if err != nil {
		return 0, fmt.Errorf("query transaction count: %w", err)
	}

	if n > s.lastIssued {
		s.lastIssued = n
		return n, nil
	}

	s.lastIssued++
	return s.lastIssued, nil
}
