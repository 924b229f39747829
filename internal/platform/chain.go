package platform

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
	"github.com/amplifrens/amplifrens-indexer/internal/messaging"
)

// EventLog is the ordered log of every event the platform emitted.
// Each successful mutating call is mined into its own block.
type EventLog struct {
	chain    domain.Chain
	contract string

	mu      sync.RWMutex
	head    uint64
	events  []domain.Event
	changed chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

// NewEventLog creates an empty log whose first block is startBlock
func NewEventLog(chain domain.Chain, contract string, startBlock uint64) *EventLog {
	head := uint64(0)
	if startBlock > 0 {
		head = startBlock - 1
	}
	return &EventLog{
		chain:    chain,
		contract: domain.NormalizeAddress(contract),
		head:     head,
		changed:  make(chan struct{}),
		closed:   make(chan struct{}),
	}
}

// txn collects the events of one mutating call
type txn struct {
	base      domain.LogMeta
	timestamp uint64
	events    []domain.Event
	undo      []func()
}

// meta returns the location of the next event of the transaction
func (t *txn) meta() domain.LogMeta {
	m := t.base
	m.LogIndex = uint64(len(t.events))
	return m
}

func (t *txn) emit(event domain.Event) {
	t.events = append(t.events, event)
}

// onRollback registers fn to revert a state change if the transaction fails
func (t *txn) onRollback(fn func()) {
	t.undo = append(t.undo, fn)
}

// rollback reverts the registered state changes, newest first, and drops the events
func (t *txn) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	t.events = nil
}

// begin opens a transaction for the next block. The caller serializes transactions.
func (l *EventLog) begin(timestamp uint64) *txn {
	l.mu.RLock()
	block := l.head + 1
	l.mu.RUnlock()

	return &txn{
		base: domain.LogMeta{
			Chain:           l.chain,
			ContractAddress: l.contract,
			TxHash:          hashOf("tx", l.chain, block),
			BlockNumber:     block,
			BlockHash:       hashOf("block", l.chain, block),
		},
		timestamp: timestamp,
	}
}

// commit mines the transaction's events into a new block and wakes up subscribers.
// A transaction without events does not use a block.
func (l *EventLog) commit(t *txn) uint64 {
	if len(t.events) == 0 {
		return 0
	}

	l.mu.Lock()
	l.head = t.base.BlockNumber
	l.events = append(l.events, t.events...)
	close(l.changed)
	l.changed = make(chan struct{})
	l.mu.Unlock()

	return t.base.BlockNumber
}

func hashOf(kind string, chain domain.Chain, block uint64) string {
	return crypto.Keccak256Hash([]byte(kind + ":" + string(chain) + ":" + strconv.FormatUint(block, 10))).Hex()
}

// Events returns the events mined at or after fromBlock, in chain order
func (l *EventLog) Events(fromBlock uint64) []domain.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []domain.Event
	for _, e := range l.events {
		if e.Meta().BlockNumber >= fromBlock {
			result = append(result, e)
		}
	}
	return result
}

// Len returns the number of events in the log
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// SubscribeEvents delivers every event from fromBlock onwards and then follows new blocks
// until ctx is done or the log is closed
func (l *EventLog) SubscribeEvents(ctx context.Context, fromBlock uint64, handler messaging.EventHandler) error {
	next := 0
	for {
		l.mu.RLock()
		pending := append([]domain.Event(nil), l.events[next:]...)
		changed := l.changed
		l.mu.RUnlock()

		for _, e := range pending {
			next++
			if e.Meta().BlockNumber < fromBlock {
				continue
			}
			if err := handler(e); err != nil {
				return fmt.Errorf("failed to handle %s event: %w", e.Kind(), err)
			}
		}
		if len(pending) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.closed:
			return nil
		case <-changed:
		}
	}
}

// GetLatestBlock returns the last mined block
func (l *EventLog) GetLatestBlock(_ context.Context) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.head, nil
}

// Close stops every subscription
func (l *EventLog) Close() {
	l.closeOnce.Do(func() {
		close(l.closed)
	})
}

var _ messaging.Subscriber = (*EventLog)(nil)
