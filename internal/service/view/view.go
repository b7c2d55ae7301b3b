// internal/service/view/view.go

package view

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"aegis/internal/domain/alert"
	"aegis/internal/domain/feed"
	"aegis/internal/domain/geo"
	"aegis/internal/domain/presence"
	"aegis/internal/domain/signal"
	geoservice "aegis/internal/service/geo"
)

// SignalLister provides the initial snapshot of active distress signals
type SignalLister interface {
	ListActive(ctx context.Context) ([]signal.DistressSignal, error)
}

// AlertLister provides the initial snapshot of safety alerts
type AlertLister interface {
	List(ctx context.Context) ([]alert.SafetyAlert, error)
}

// View is a per-client aggregate of other users' last known positions and
// the live signal/alert sets, kept current by the change-feed bus. It
// subscribes before seeding from the stores' snapshots, so an event for a
// row already in the snapshot can arrive twice; duplicates are resolved by
// keeping the latest record per key.
type View struct {
	bus      feed.Bus
	presence presence.Store
	signals  SignalLister
	alerts   AlertLister
	logger   *zap.Logger

	mu         sync.RWMutex
	users      map[string]presence.UserLocation
	userSeqs   map[string]uint64
	signalSet  map[string]signal.DistressSignal
	signalSeqs map[string]uint64
	alertSet   map[string]alert.SafetyAlert

	startMu sync.Mutex
	cancel  context.CancelFunc
	subs    []feed.Subscription
	done    chan struct{}
}

// New creates a presence view over the given stores and bus
func New(bus feed.Bus, presenceStore presence.Store, signals SignalLister, alerts AlertLister, logger *zap.Logger) *View {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &View{
		bus:        bus,
		presence:   presenceStore,
		signals:    signals,
		alerts:     alerts,
		logger:     logger,
		users:      make(map[string]presence.UserLocation),
		userSeqs:   make(map[string]uint64),
		signalSet:  make(map[string]signal.DistressSignal),
		signalSeqs: make(map[string]uint64),
		alertSet:   make(map[string]alert.SafetyAlert),
	}
}

// Start subscribes to the three streams and seeds the view from the
// stores' snapshots
func (v *View) Start(ctx context.Context) error {
	v.startMu.Lock()
	defer v.startMu.Unlock()

	if v.cancel != nil {
		return fmt.Errorf("view already started")
	}

	presenceSub := v.bus.Subscribe(feed.StreamPresence)
	signalSub := v.bus.Subscribe(feed.StreamDistressSignal)
	alertSub := v.bus.Subscribe(feed.StreamAlert)
	v.subs = []feed.Subscription{presenceSub, signalSub, alertSub}

	if err := v.seed(ctx); err != nil {
		for _, sub := range v.subs {
			sub.Unsubscribe()
		}
		v.subs = nil
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	v.cancel = cancel
	v.done = done

	go v.consume(ctx, presenceSub, signalSub, alertSub, done)

	return nil
}

// Close releases the subscriptions and stops the consumer. Idempotent.
func (v *View) Close() {
	v.startMu.Lock()
	cancel := v.cancel
	done := v.done
	subs := v.subs
	v.cancel = nil
	v.done = nil
	v.subs = nil
	v.startMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
	<-done
}

// seed loads the initial state from the owning stores
func (v *View) seed(ctx context.Context) error {
	locations, err := v.presence.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("error loading presence snapshot: %w", err)
	}
	activeSignals, err := v.signals.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("error loading signal snapshot: %w", err)
	}
	allAlerts, err := v.alerts.List(ctx)
	if err != nil {
		return fmt.Errorf("error loading alert snapshot: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	for _, loc := range locations {
		existing, ok := v.users[loc.UserID]
		if !ok || loc.LastUpdated.After(existing.LastUpdated) {
			v.users[loc.UserID] = loc
		}
	}
	for _, sig := range activeSignals {
		if _, ok := v.signalSet[sig.ID]; !ok {
			v.signalSet[sig.ID] = sig
		}
	}
	for _, a := range allAlerts {
		if _, ok := v.alertSet[a.ID]; !ok {
			v.alertSet[a.ID] = a
		}
	}

	return nil
}

// consume applies bus events until the context is cancelled
func (v *View) consume(ctx context.Context, presenceSub, signalSub, alertSub feed.Subscription, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-presenceSub.Events():
			if !ok {
				return
			}
			v.applyPresence(event)
		case event, ok := <-signalSub.Events():
			if !ok {
				return
			}
			v.applySignal(event)
		case event, ok := <-alertSub.Events():
			if !ok {
				return
			}
			v.applyAlert(event)
		}
	}
}

// applyPresence merges a presence event, keeping the latest record per
// user by sequence and last_updated
func (v *View) applyPresence(event feed.ChangeEvent) {
	loc, ok := event.Payload.(presence.UserLocation)
	if !ok {
		v.logger.Warn("unexpected presence payload type", zap.Uint64("sequence", event.Sequence))
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if event.Kind == feed.KindDelete {
		delete(v.users, loc.UserID)
		delete(v.userSeqs, loc.UserID)
		return
	}

	if event.Sequence < v.userSeqs[loc.UserID] {
		return
	}
	existing, ok := v.users[loc.UserID]
	if ok && existing.LastUpdated.After(loc.LastUpdated) {
		return
	}
	v.users[loc.UserID] = loc
	v.userSeqs[loc.UserID] = event.Sequence
}

// applySignal merges a distress signal event
func (v *View) applySignal(event feed.ChangeEvent) {
	sig, ok := event.Payload.(signal.DistressSignal)
	if !ok {
		v.logger.Warn("unexpected signal payload type", zap.Uint64("sequence", event.Sequence))
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if event.Kind == feed.KindDelete {
		delete(v.signalSet, sig.ID)
		delete(v.signalSeqs, sig.ID)
		return
	}

	if event.Sequence < v.signalSeqs[sig.ID] {
		return
	}
	v.signalSet[sig.ID] = sig
	v.signalSeqs[sig.ID] = event.Sequence
}

// applyAlert merges a safety alert event. Alerts are immutable, so only
// inserts and deletes matter.
func (v *View) applyAlert(event feed.ChangeEvent) {
	a, ok := event.Payload.(alert.SafetyAlert)
	if !ok {
		v.logger.Warn("unexpected alert payload type", zap.Uint64("sequence", event.Sequence))
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if event.Kind == feed.KindDelete {
		delete(v.alertSet, a.ID)
		return
	}
	v.alertSet[a.ID] = a
}

// Users returns the last known location of every user, ordered by user id
func (v *View) Users() []presence.UserLocation {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]presence.UserLocation, 0, len(v.users))
	for _, loc := range v.users {
		out = append(out, loc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })

	return out
}

// ActiveSignals returns the active distress signals, oldest first
func (v *View) ActiveSignals() []signal.DistressSignal {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var out []signal.DistressSignal
	for _, sig := range v.signalSet {
		if sig.Status == signal.StatusActive {
			out = append(out, sig)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out
}

// ActiveAlerts returns the alerts live at the given time, highest severity
// first
func (v *View) ActiveAlerts(now time.Time) []alert.SafetyAlert {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var out []alert.SafetyAlert
	for _, a := range v.alertSet {
		if a.IsActive(now) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity.Rank() != out[j].Severity.Rank() {
			return out[i].Severity.Rank() > out[j].Severity.Rank()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out
}

// NearbySignals returns the active signals within the given radius of the
// origin. The radius is caller-supplied; signals carry no radius of their
// own.
func (v *View) NearbySignals(origin geo.Coordinates, radiusMeters float64) []signal.DistressSignal {
	active := v.ActiveSignals()

	candidates := make([]geoservice.Candidate, 0, len(active))
	byID := make(map[string]signal.DistressSignal, len(active))
	for _, sig := range active {
		candidates = append(candidates, geoservice.Candidate{
			ID:       sig.ID,
			Position: sig.Coordinates(),
			Radius:   radiusMeters,
		})
		byID[sig.ID] = sig
	}

	var out []signal.DistressSignal
	for _, id := range geoservice.Evaluate(origin, candidates) {
		out = append(out, byID[id])
	}

	return out
}

// AlertsInRange returns the active alerts whose own radius covers the
// origin. Expired alerts are filtered out before evaluation.
func (v *View) AlertsInRange(origin geo.Coordinates, now time.Time) []alert.SafetyAlert {
	active := v.ActiveAlerts(now)

	candidates := make([]geoservice.Candidate, 0, len(active))
	byID := make(map[string]alert.SafetyAlert, len(active))
	for _, a := range active {
		candidates = append(candidates, geoservice.Candidate{
			ID:       a.ID,
			Position: a.Coordinates(),
			Radius:   a.RadiusMeters,
		})
		byID[a.ID] = a
	}

	var out []alert.SafetyAlert
	for _, id := range geoservice.Evaluate(origin, candidates) {
		out = append(out, byID[id])
	}

	return out
}
