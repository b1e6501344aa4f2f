package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/copperline/copperline/internal/store"
)

// Recognized business event types.
const (
	EventMeetingBooked = "MEETING_BOOKED"
	EventCallCompleted = "CALL_COMPLETED"
	EventDemoRequested = "DEMO_REQUESTED"
	EventEmailOpened   = "EMAIL_OPENED"
	EventEmailClicked  = "EMAIL_CLICKED"
	EventCampaignTouch = "CAMPAIGN_TOUCH"
	EventFormSubmitted = "FORM_SUBMITTED"
	EventWebsiteVisit  = "WEBSITE_VISIT"
)

var validEventTypes = map[string]bool{
	EventMeetingBooked: true,
	EventCallCompleted: true,
	EventDemoRequested: true,
	EventEmailOpened:   true,
	EventEmailClicked:  true,
	EventCampaignTouch: true,
	EventFormSubmitted: true,
	EventWebsiteVisit:  true,
}

// ValidEventType reports whether t is a recognized business event type.
func ValidEventType(t string) bool { return validEventTypes[t] }

// EventTypes returns the recognized event types.
func EventTypes() []string {
	return []string{
		EventMeetingBooked, EventCallCompleted, EventDemoRequested,
		EventEmailOpened, EventEmailClicked, EventCampaignTouch,
		EventFormSubmitted, EventWebsiteVisit,
	}
}

const (
	maxRetries    = 3
	retryBackoff  = 50 * time.Millisecond
	ruleCacheTTL  = 30 * time.Second
	minRulePoints = -100
	maxRulePoints = 100
)

// Engine orchestrates rule matching, cooldown/occurrence enforcement,
// point application, and threshold transitions. All mutations to one
// contact's score state are serialized through a per-contact mutex;
// different contacts proceed fully in parallel.
type Engine struct {
	DB       *store.DB
	Notifier Notifier

	rules  *ruleCache
	stopCh chan struct{}

	// DecayInterval is how often the background decay pass runs.
	DecayInterval time.Duration

	lockMu sync.Mutex
	locks  map[int64]*sync.Mutex

	now func() time.Time // overridable in tests
}

// New creates an Engine over the given database. Transitions are logged
// unless SetNotifier installs a real delivery collaborator.
func New(db *store.DB) *Engine {
	return &Engine{
		DB:            db,
		Notifier:      LogNotifier{},
		rules:         newRuleCache(db, ruleCacheTTL),
		stopCh:        make(chan struct{}),
		DecayInterval: 5 * time.Minute,
		locks:         make(map[int64]*sync.Mutex),
		now:           time.Now,
	}
}

// SetNotifier installs the status-transition delivery collaborator.
func (e *Engine) SetNotifier(n Notifier) {
	if n != nil {
		e.Notifier = n
	}
}

// contactLock returns the mutex serializing one contact's score state.
func (e *Engine) contactLock(contactID int64) *sync.Mutex {
	e.lockMu.Lock()
	defer e.lockMu.Unlock()
	mu, ok := e.locks[contactID]
	if !ok {
		mu = &sync.Mutex{}
		e.locks[contactID] = mu
	}
	return mu
}

// withRetry runs fn, retrying on transient SQLite lock contention with
// a short linear backoff before surfacing a ConflictError.
func (e *Engine) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err = fn()
		if err == nil || !isBusy(err) {
			return err
		}
		select {
		case <-time.After(time.Duration(attempt) * retryBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return &ConflictError{Err: err}
}

// AppliedRule describes one rule firing within an Outcome.
type AppliedRule struct {
	RuleID    int64  `json:"rule_id"`
	EventType string `json:"event_type"`
	Points    int    `json:"points"`
	EntryID   int64  `json:"entry_id"`
}

// Outcome is the result of processing an event or manual adjustment.
type Outcome struct {
	AppliedRules []AppliedRule `json:"applied_rules"`
	TotalDelta   int           `json:"total_delta"`
	NewScore     int           `json:"new_score"`
	Status       string        `json:"status"`
	Transitioned bool          `json:"transitioned"`
}

// ProcessEvent scores one inbound business event for a contact. Rules
// on the contact's model (or the system default) that match the event
// type, pass their conditions, and clear occurrence-cap and cooldown
// gates each append a ledger entry. No matching rule is a no-op
// success, not an error.
func (e *Engine) ProcessEvent(ctx context.Context, contactID int64, eventType string, evCtx map[string]string) (*Outcome, error) {
	if contactID == 0 {
		return nil, validationf("contact id required")
	}
	if !ValidEventType(eventType) {
		return nil, validationf("unknown event type %q", eventType)
	}

	contact, err := e.DB.GetContact(contactID)
	if err != nil {
		return nil, fmt.Errorf("load contact: %w", err)
	}
	if contact == nil {
		return nil, &NotFoundError{Kind: "contact", ID: fmt.Sprint(contactID)}
	}

	mu := e.contactLock(contactID)
	mu.Lock()
	defer mu.Unlock()

	// Re-read under the lock: another event may have just moved the
	// score or status.
	contact, err = e.DB.GetContact(contactID)
	if err != nil {
		return nil, fmt.Errorf("load contact: %w", err)
	}

	snap, err := e.resolveModel(contact)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{NewScore: contact.Score, Status: contact.Status}
	if snap == nil || !snap.Model.IsActive {
		return outcome, nil
	}

	now := e.now().UnixMilli()
	for i := range snap.Rules {
		rule := &snap.Rules[i]
		if rule.EventType != eventType || !rule.IsActive {
			continue
		}

		eligible, err := e.ruleEligible(rule, contactID, evCtx, now)
		if err != nil {
			return nil, err
		}
		if !eligible {
			continue
		}

		var entry *store.HistoryEntry
		var newScore int
		err = e.withRetry(ctx, func() error {
			var applyErr error
			entry, newScore, applyErr = e.DB.ApplyRule(contactID, rule, now)
			return applyErr
		})
		if err != nil {
			return nil, err
		}

		outcome.AppliedRules = append(outcome.AppliedRules, AppliedRule{
			RuleID:    rule.ID,
			EventType: rule.EventType,
			Points:    rule.Points,
			EntryID:   entry.ID,
		})
		outcome.TotalDelta += rule.Points
		outcome.NewScore = newScore
	}

	outcome.Status, outcome.Transitioned, err = e.evaluateThresholds(contact, snap, outcome.NewScore)
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// ruleEligible applies, in order, condition evaluation, the lifetime
// occurrence cap, and the cooldown window. Rules are independent: one
// rule's rejection never affects another's eligibility.
func (e *Engine) ruleEligible(rule *store.ScoringRule, contactID int64, evCtx map[string]string, now int64) (bool, error) {
	conds, err := ParseConditions(rule.Conditions)
	if err != nil {
		// A malformed stored rule must not match anything.
		log.Printf("rule %d: bad conditions, skipping: %v", rule.ID, err)
		return false, nil
	}
	ok, err := evalConditions(conds, evCtx)
	if err != nil {
		log.Printf("rule %d: condition evaluation failed, skipping: %v", rule.ID, err)
		return false, nil
	}
	if !ok {
		return false, nil
	}

	if rule.MaxOccurrences != nil {
		count, err := e.DB.OccurrenceCount(contactID, rule.ID)
		if err != nil {
			return false, fmt.Errorf("occurrence count: %w", err)
		}
		if count >= *rule.MaxOccurrences {
			return false, nil
		}
	}

	if rule.CooldownHours != nil {
		last, err := e.DB.LastAppliedAt(contactID, rule.ID)
		if err != nil {
			return false, fmt.Errorf("last applied: %w", err)
		}
		if last != nil {
			cooldownMs := int64(*rule.CooldownHours) * 60 * 60 * 1000
			if now-*last < cooldownMs {
				return false, nil
			}
		}
	}

	return true, nil
}

// AdjustScore appends a manual ledger entry with no rule reference.
// Cooldowns and occurrence caps do not apply; thresholds are re-run.
func (e *Engine) AdjustScore(ctx context.Context, contactID int64, points int, reason string) (*Outcome, error) {
	if contactID == 0 {
		return nil, validationf("contact id required")
	}
	if points == 0 {
		return nil, validationf("points must be non-zero")
	}
	if reason == "" {
		return nil, validationf("reason required")
	}

	contact, err := e.DB.GetContact(contactID)
	if err != nil {
		return nil, fmt.Errorf("load contact: %w", err)
	}
	if contact == nil {
		return nil, &NotFoundError{Kind: "contact", ID: fmt.Sprint(contactID)}
	}

	mu := e.contactLock(contactID)
	mu.Lock()
	defer mu.Unlock()

	contact, err = e.DB.GetContact(contactID)
	if err != nil {
		return nil, fmt.Errorf("load contact: %w", err)
	}

	now := e.now().UnixMilli()
	var newScore int
	err = e.withRetry(ctx, func() error {
		var appendErr error
		_, newScore, appendErr = e.DB.AppendAdjustment(contactID, points, reason, now)
		return appendErr
	})
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{TotalDelta: points, NewScore: newScore, Status: contact.Status}

	// Manual adjustments need no model for the points themselves, but a
	// threshold check still wants one; without any model the status
	// simply stays put.
	snap, err := e.resolveModel(contact)
	if err != nil {
		return nil, err
	}
	if snap != nil {
		outcome.Status, outcome.Transitioned, err = e.evaluateThresholds(contact, snap, newScore)
		if err != nil {
			return nil, err
		}
	}
	return outcome, nil
}

// History returns a contact's score ledger, most recent first.
func (e *Engine) History(ctx context.Context, contactID int64, limit int) ([]store.HistoryEntry, error) {
	contact, err := e.DB.GetContact(contactID)
	if err != nil {
		return nil, fmt.Errorf("load contact: %w", err)
	}
	if contact == nil {
		return nil, &NotFoundError{Kind: "contact", ID: fmt.Sprint(contactID)}
	}
	return e.DB.History(contactID, limit)
}

// resolveModel returns the snapshot for the contact's model override,
// falling back to the system default. Nil when neither exists.
func (e *Engine) resolveModel(contact *store.Contact) (*store.ModelSnapshot, error) {
	if contact.ModelID != nil {
		snap, err := e.rules.Snapshot(*contact.ModelID)
		if err != nil {
			return nil, fmt.Errorf("load model %d: %w", *contact.ModelID, err)
		}
		if snap != nil {
			return snap, nil
		}
		// Override points at a deleted model; fall back to default.
	}
	snap, err := e.rules.Default()
	if err != nil {
		return nil, fmt.Errorf("load default model: %w", err)
	}
	return snap, nil
}

// evaluateThresholds advances the contact's status when the score has
// crossed a model threshold and notifies exactly once per transition.
func (e *Engine) evaluateThresholds(contact *store.Contact, snap *store.ModelSnapshot, score int) (string, bool, error) {
	next := nextStatus(score, snap.Model.QualifiedThreshold, snap.Model.CustomerThreshold, contact.Status)
	if next == contact.Status {
		return contact.Status, false, nil
	}
	if err := e.DB.SetContactStatus(contact.ID, next); err != nil {
		return contact.Status, false, fmt.Errorf("set status: %w", err)
	}
	e.Notifier.StatusChanged(contact.ID, contact.Status, next)
	return next, true, nil
}
