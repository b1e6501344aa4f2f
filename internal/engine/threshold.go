package engine

import (
	"log"

	"github.com/copperline/copperline/internal/store"
)

// Notifier receives status-transition events. Delivery (push, email,
// webhook) is outside the engine's concern; the default just logs.
type Notifier interface {
	StatusChanged(contactID int64, oldStatus, newStatus string)
}

// LogNotifier logs transitions to the standard logger.
type LogNotifier struct{}

func (LogNotifier) StatusChanged(contactID int64, oldStatus, newStatus string) {
	log.Printf("contact %d: status %s -> %s", contactID, oldStatus, newStatus)
}

var statusRank = map[string]int{
	store.StatusNew:       0,
	store.StatusQualified: 1,
	store.StatusCustomer:  2,
}

// nextStatus returns the status a contact should hold given its score
// and the model thresholds. Status only advances: a score that falls
// back below a threshold never demotes, and crossing both thresholds in
// one update jumps straight to customer.
func nextStatus(score, qualifiedThreshold, customerThreshold int, current string) string {
	target := store.StatusNew
	if score >= customerThreshold {
		target = store.StatusCustomer
	} else if score >= qualifiedThreshold {
		target = store.StatusQualified
	}

	if statusRank[target] > statusRank[current] {
		return target
	}
	return current
}
