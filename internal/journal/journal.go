// Package journal records confirmed DID transactions so they can be listed
// per address after the wallet session that produced them has ended.
package journal

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/kaiacity/kaiapass/internal/services"
)

// DefaultListLimit bounds List when the caller passes no limit.
const DefaultListLimit = 50

// Journal stores transaction records. Implementations satisfy
// services.TransactionObserver so they can be attached to a DIDService.
type Journal interface {
	services.TransactionObserver
	List(ctx context.Context, address string, limit int) ([]services.TransactionRecord, error)
}

// MemoryJournal keeps records in process memory.
type MemoryJournal struct {
	mu      sync.RWMutex
	records []services.TransactionRecord
}

// NewMemoryJournal creates an empty journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

// ObserveTransaction implements services.TransactionObserver.
func (j *MemoryJournal) ObserveTransaction(_ context.Context, record services.TransactionRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, record)
	return nil
}

// List returns the newest records for address first. An empty address
// lists every record.
func (j *MemoryJournal) List(_ context.Context, address string, limit int) ([]services.TransactionRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	j.mu.RLock()
	out := make([]services.TransactionRecord, 0, len(j.records))
	for _, r := range j.records {
		if address == "" || strings.EqualFold(r.Address, address) {
			out = append(out, r)
		}
	}
	j.mu.RUnlock()

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
