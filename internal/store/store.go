// Package store holds the shared profile state.
//
// The store reduces the signals dispatched by the workflows into a snapshot
// and fans every signal out to subscribers. Dispatch never blocks on a slow
// subscriber: when a subscriber's buffer is full the oldest queued signal is
// dropped so the newest always arrives.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/profile-service/internal/domain"
	"github.com/helixir/profile-service/internal/observability"
)

// DefaultSubscriptionBuffer is used when Subscribe is called with a buffer below one.
const DefaultSubscriptionBuffer = 16

// SessionState is the session slice of the store.
type SessionState struct {
	Expired   bool
	ExpiredAt time.Time
}

// RefreshState records the last refresh trigger seen by the store.
type RefreshState struct {
	Attempt     int
	Reason      string
	RequestedAt time.Time
}

// State is a read-only snapshot of the store.
type State struct {
	Profile            Pot[*domain.Profile]
	UserDataProcessing map[domain.UserDataProcessingChoice]Pot[*domain.UserDataProcessing]
	Session            SessionState
	LastRefresh        RefreshState
}

// UserData returns the pot of the given choice.
func (s State) UserData(choice domain.UserDataProcessingChoice) Pot[*domain.UserDataProcessing] {
	return s.UserDataProcessing[choice]
}

func (s State) clone() State {
	out := s
	out.UserDataProcessing = make(map[domain.UserDataProcessingChoice]Pot[*domain.UserDataProcessing], len(s.UserDataProcessing))
	for k, v := range s.UserDataProcessing {
		out.UserDataProcessing[k] = v
	}
	return out
}

type subscription struct {
	ch    chan domain.Signal
	types map[domain.SignalType]struct{}
}

func (s *subscription) matches(t domain.SignalType) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// Option configures a Store.
type Option func(*Store)

// WithMetrics sets the metrics recorder.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is the mutex-guarded shared state.
type Store struct {
	mu     sync.Mutex
	state  State
	subs   map[*subscription]struct{}
	closed bool

	metrics *observability.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		state: State{
			UserDataProcessing: make(map[domain.UserDataProcessingChoice]Pot[*domain.UserDataProcessing]),
		},
		subs:   make(map[*subscription]struct{}),
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "store").Logger()
	return s
}

// Hydrate seeds the profile from a persisted snapshot. It has no effect once
// the store holds a profile or a load is in flight.
func (s *Store) Hydrate(p *domain.Profile) bool {
	if p == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Profile.Kind() != PotNone {
		return false
	}
	s.state.Profile = Some(p)
	return true
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Dispatch reduces sig into the state and delivers it to every matching
// subscriber. Delivery order matches dispatch order.
func (s *Store) Dispatch(ctx context.Context, sig domain.Signal) {
	logger := observability.LoggerFromContext(ctx, s.logger)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		logger.Debug().Str("signal", string(sig.Type)).Msg("store closed, signal ignored")
		return
	}

	s.state = reduce(s.state, sig, s.now())
	s.metrics.RecordSignalDispatched(string(sig.Type))
	if sig.Type == domain.SignalSessionExpired {
		s.metrics.RecordSessionExpired()
	}

	for sub := range s.subs {
		if !sub.matches(sig.Type) {
			continue
		}
		if !deliver(sub.ch, sig) {
			s.metrics.RecordSignalDropped()
			logger.Warn().Str("signal", string(sig.Type)).Msg("subscriber buffer full, dropped oldest signal")
		}
	}

	logger.Debug().Str("signal", string(sig.Type)).Msg("signal dispatched")
}

// deliver sends sig without blocking, evicting the oldest queued signal when
// the buffer is full. It reports false when a signal was dropped.
func deliver(ch chan domain.Signal, sig domain.Signal) bool {
	select {
	case ch <- sig:
		return true
	default:
	}

	select {
	case <-ch:
	default:
	}
	select {
	case ch <- sig:
	default:
	}
	return false
}

// Subscribe returns a channel receiving every dispatched signal whose type is
// in types, or every signal when types is empty. The returned function
// cancels the subscription and closes the channel.
func (s *Store) Subscribe(buffer int, types ...domain.SignalType) (<-chan domain.Signal, func()) {
	if buffer < 1 {
		buffer = DefaultSubscriptionBuffer
	}
	sub := &subscription{
		ch:    make(chan domain.Signal, buffer),
		types: make(map[domain.SignalType]struct{}, len(types)),
	}
	for _, t := range types {
		sub.types[t] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	s.subs[sub] = struct{}{}

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[sub]; ok {
				delete(s.subs, sub)
				close(sub.ch)
			}
		})
	}
}

// Close closes every subscription. Later dispatches are ignored.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for sub := range s.subs {
		delete(s.subs, sub)
		close(sub.ch)
	}
}

// reduce returns the state after sig.
func reduce(st State, sig domain.Signal, now time.Time) State {
	switch sig.Type {
	case domain.SignalProfileLoadRequest:
		st.Profile = st.Profile.ToLoading()

	case domain.SignalProfileLoadSuccess:
		if sig.Profile != nil {
			st.Profile = Some(sig.Profile)
		}
		st.Session = SessionState{}

	case domain.SignalProfileLoadFailure:
		st.Profile = st.Profile.ToError(sig.Err)

	case domain.SignalSessionExpired:
		st.Session = SessionState{Expired: true, ExpiredAt: now}
		st.Profile = st.Profile.Settle()
		st = st.clone()
		for choice, pot := range st.UserDataProcessing {
			st.UserDataProcessing[choice] = pot.Settle()
		}

	case domain.SignalProfileRefreshRequested:
		st.LastRefresh = RefreshState{Attempt: sig.Attempt, Reason: sig.Reason, RequestedAt: now}

	case domain.SignalUserDataLoadRequest:
		st = st.clone()
		st.UserDataProcessing[sig.Choice] = st.UserDataProcessing[sig.Choice].ToLoading()

	case domain.SignalUserDataLoadSuccess:
		st = st.clone()
		st.UserDataProcessing[sig.Choice] = Some(sig.UserData)

	case domain.SignalUserDataLoadFailure:
		st = st.clone()
		st.UserDataProcessing[sig.Choice] = st.UserDataProcessing[sig.Choice].ToError(sig.Err)
	}
	return st
}
