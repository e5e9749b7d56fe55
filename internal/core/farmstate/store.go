// Package farmstate holds the latest soil analysis and crop recommendations
// shared by every view in a running client.
package farmstate

import (
	"errors"
	"sync"
	"time"

	"github.com/neilberkman/fieldhand/internal/core/advisoryapi"
)

var (
	// ErrStale is returned when a result was produced before the most recent
	// Clear and must not be applied.
	ErrStale = errors.New("farm state was cleared while the result was in flight")
	// ErrNoSoilAnalysis is returned for a result without a soil analysis.
	ErrNoSoilAnalysis = errors.New("result carries no soil analysis")
)

// Result is one submission's payload. CropsProvided distinguishes an empty
// list from "not provided": an absent list keeps the stored one, a provided
// empty list replaces it.
type Result struct {
	Soil          *advisoryapi.SoilAnalysis
	Crops         []advisoryapi.CropRecommendation
	CropsProvided bool
}

// State is an immutable snapshot handed to readers and subscribers.
type State struct {
	Soil  *advisoryapi.SoilAnalysis
	Crops []advisoryapi.CropRecommendation

	// Revision increments on every change, including Clear.
	Revision uint64
	// CropsRevision is the Revision at which Crops was last replaced.
	CropsRevision uint64
	RecordedAt    time.Time
}

// Empty reports whether nothing has been recorded since the last Clear.
func (s State) Empty() bool {
	return s.Soil == nil && len(s.Crops) == 0
}

// CropsCurrent reports whether Crops came from the latest soil submission.
func (s State) CropsCurrent() bool {
	return s.Soil != nil && s.CropsRevision == s.Revision
}

func (s State) clone() State {
	cp := s
	cp.Soil = s.Soil.Clone()
	if s.Crops != nil {
		cp.Crops = make([]advisoryapi.CropRecommendation, len(s.Crops))
		copy(cp.Crops, s.Crops)
	}
	return cp
}

type subscriber struct {
	id int
	fn func(State)
}

// Store is the shared farm-state container. Create one per client and pass
// it to every view; it has no package-level state.
type Store struct {
	// notifyMu serialises mutate-then-fan-out so subscribers see updates in
	// the order they were applied. Subscribers may read the store but must
	// not mutate it from inside the callback.
	notifyMu sync.Mutex

	mu     sync.RWMutex
	state  State
	epoch  uint64
	subs   []subscriber
	nextID int
	now    func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{now: time.Now}
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// SoilAnalysis returns a copy of the stored soil analysis, or nil.
func (s *Store) SoilAnalysis() *advisoryapi.SoilAnalysis {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Soil.Clone()
}

// CropRecommendations returns the stored crops in server rank order.
func (s *Store) CropRecommendations() []advisoryapi.CropRecommendation {
	return s.State().Crops
}

// Epoch identifies the current clear-cycle. Capture it before starting the
// fetches for a result and pass it to RecordResultAt.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// RecordResult applies r against the current epoch.
func (s *Store) RecordResult(r Result) error {
	return s.RecordResultAt(s.Epoch(), r)
}

// RecordResultAt replaces the soil analysis and (when provided) the crop list
// in one update, unless the store was cleared after epoch was captured.
func (s *Store) RecordResultAt(epoch uint64, r Result) error {
	if r.Soil == nil {
		return ErrNoSoilAnalysis
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return ErrStale
	}

	next := s.state
	next.Revision++
	next.Soil = r.Soil.Clone()
	next.RecordedAt = s.now()
	if r.CropsProvided {
		next.Crops = make([]advisoryapi.CropRecommendation, len(r.Crops))
		copy(next.Crops, r.Crops)
		next.CropsRevision = next.Revision
	}
	s.state = next

	snap, subs := s.publishLocked()
	s.mu.Unlock()

	fanOut(snap, subs)
	return nil
}

// Clear empties the store and invalidates results still in flight.
func (s *Store) Clear() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.epoch++
	s.state = State{Revision: s.state.Revision + 1}
	snap, subs := s.publishLocked()
	s.mu.Unlock()

	fanOut(snap, subs)
}

// Subscribe registers fn to be called synchronously after every change.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) publishLocked() (State, []subscriber) {
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	return s.state, subs
}

// fanOut hands each subscriber its own copy of the same snapshot.
func fanOut(snap State, subs []subscriber) {
	for _, sub := range subs {
		sub.fn(snap.clone())
	}
}
