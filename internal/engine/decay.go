package engine

import (
	"context"
	"fmt"
	"log"
	"time"
)

const decayBatchSize = 500

// RunDecay performs one full decay pass: every ledger entry whose decay
// window has elapsed gets an offsetting reversal entry and is marked
// decayed. Each contact's reversals run under that contact's lock, so a
// pass never races live event processing, and the decayed flag is
// checked-and-set inside the reversal transaction, so two concurrent
// passes reverse each entry at most once. Returns the number of
// reversals applied.
func (e *Engine) RunDecay(ctx context.Context) (int, error) {
	reversed := 0

	for {
		now := e.now().UnixMilli()
		entries, err := e.DB.DueDecayEntries(now, decayBatchSize)
		if err != nil {
			return reversed, fmt.Errorf("due decay entries: %w", err)
		}
		if len(entries) == 0 {
			return reversed, nil
		}

		// Group by contact so each contact is locked once per batch.
		byContact := make(map[int64][]int64)
		var order []int64
		for _, entry := range entries {
			if _, seen := byContact[entry.ContactID]; !seen {
				order = append(order, entry.ContactID)
			}
			byContact[entry.ContactID] = append(byContact[entry.ContactID], entry.ID)
		}

		batchReversed := 0
		for _, contactID := range order {
			n, err := e.decayContact(ctx, contactID, byContact[contactID])
			if err != nil {
				return reversed, err
			}
			batchReversed += n
			reversed += n
		}

		// Every due entry was already reversed elsewhere; nothing left
		// for this pass to do.
		if batchReversed == 0 {
			return reversed, nil
		}
	}
}

// decayContact reverses the given ledger entries under the contact's
// lock and re-runs the threshold evaluator. Decay never demotes status.
func (e *Engine) decayContact(ctx context.Context, contactID int64, entryIDs []int64) (int, error) {
	mu := e.contactLock(contactID)
	mu.Lock()
	defer mu.Unlock()

	reversed := 0
	finalScore := 0
	for _, entryID := range entryIDs {
		var applied bool
		var newScore int
		err := e.withRetry(ctx, func() error {
			var decayErr error
			newScore, applied, decayErr = e.DB.ApplyDecayEntry(entryID, e.now().UnixMilli())
			return decayErr
		})
		if err != nil {
			return reversed, fmt.Errorf("decay entry %d: %w", entryID, err)
		}
		if applied {
			reversed++
			finalScore = newScore
		}
	}

	if reversed == 0 {
		return 0, nil
	}

	contact, err := e.DB.GetContact(contactID)
	if err != nil || contact == nil {
		return reversed, err
	}
	snap, err := e.resolveModel(contact)
	if err != nil {
		return reversed, err
	}
	if snap != nil {
		if _, _, err := e.evaluateThresholds(contact, snap, finalScore); err != nil {
			return reversed, err
		}
	}
	return reversed, nil
}

// Start runs a decay pass immediately and then every DecayInterval
// until Stop is called.
func (e *Engine) Start() {
	if n, err := e.RunDecay(context.Background()); err != nil {
		log.Printf("decay error: %v", err)
	} else if n > 0 {
		log.Printf("decay: reversed %d entries", n)
	}

	go func() {
		ticker := time.NewTicker(e.DecayInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if n, err := e.RunDecay(context.Background()); err != nil {
					log.Printf("decay error: %v", err)
				} else if n > 0 {
					log.Printf("decay: reversed %d entries", n)
				}
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the engine's background goroutines.
func (e *Engine) Stop() {
	close(e.stopCh)
}
