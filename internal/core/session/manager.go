// Package session owns the authentication lifecycle: the startup session
// check, the two-step OTP login, logout and server-reported invalidation.
// It is the only code that reads or writes the persisted session token.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/neilberkman/fieldhand/internal/core/advisoryapi"
	"github.com/neilberkman/fieldhand/internal/core/credstore"
	"go.uber.org/zap"
)

// ErrSuperseded is returned when a newer operation (or a logout) started
// while this one was waiting on the server. Its response was discarded.
var ErrSuperseded = errors.New("superseded by a newer session operation")

// Authenticator is the server side of the login protocol.
// *advisoryapi.Client satisfies it.
type Authenticator interface {
	SendOTP(ctx context.Context, email string) (*advisoryapi.SendOTPResponse, error)
	VerifyOTP(ctx context.Context, email, otp string) (*advisoryapi.VerifyOTPResponse, error)
	CheckSession(ctx context.Context) (*advisoryapi.SessionStatus, error)
	Logout(ctx context.Context) error
}

// FarmClearer is cleared whenever the session ends.
type FarmClearer interface {
	Clear()
}

type Option func(*Manager)

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithFarmState registers the farm store that logout and invalidation clear.
func WithFarmState(f FarmClearer) Option {
	return func(m *Manager) { m.farm = f }
}

type subscriber struct {
	id int
	fn func(Snapshot)
}

// Manager is the session state machine. Responses are tagged with the
// generation current when their request started and are dropped if the
// generation moved on in the meantime.
type Manager struct {
	auth   Authenticator
	store  credstore.Store
	farm   FarmClearer
	logger *zap.Logger

	// notifyMu keeps transitions and their notifications in the same order.
	notifyMu sync.Mutex

	mu     sync.Mutex
	snap   Snapshot
	token  string
	gen    uint64
	subs   []subscriber
	nextID int
}

// New creates a manager in StateCheckingSession. Call CheckSession once at
// startup to resolve it.
func New(auth Authenticator, store credstore.Store, opts ...Option) *Manager {
	m := &Manager{
		auth:   auth,
		store:  store,
		logger: zap.NewNop(),
		snap:   Snapshot{State: StateCheckingSession},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Snapshot returns the current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Subscribe registers fn to be called after every transition.
func (m *Manager) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.subs = append(m.subs, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, sub := range m.subs {
				if sub.id == id {
					m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// CheckSession validates the persisted session, if any. With nothing
// persisted it settles on StateUnauthenticated without a request. A
// rejection clears the persisted pair; a transport failure keeps it and is
// returned so the caller can show it.
func (m *Manager) CheckSession(ctx context.Context) (Snapshot, error) {
	ticket := m.advance(func(s *Snapshot) {
		*s = Snapshot{State: StateCheckingSession}
	})

	creds, err := m.store.Load(ctx)
	if err != nil {
		loadErr := advisoryapi.Internal("Could not read saved session", err)
		return m.apply(ticket, func(s *Snapshot) error {
			m.token = ""
			*s = Snapshot{State: StateUnauthenticated, Err: loadErr}
			return loadErr
		})
	}
	if creds == nil {
		return m.apply(ticket, func(s *Snapshot) error {
			m.token = ""
			*s = Snapshot{State: StateUnauthenticated}
			return nil
		})
	}

	status, err := m.auth.CheckSession(advisoryapi.ContextWithSession(ctx, creds.SessionID))

	return m.apply(ticket, func(s *Snapshot) error {
		switch {
		case err == nil && status.Authenticated:
			email := status.Email
			if email == "" {
				email = creds.Email
			}
			if email != creds.Email {
				if serr := m.store.Save(ctx, credstore.Credentials{SessionID: creds.SessionID, Email: email}); serr != nil {
					m.logger.Warn("could not persist confirmed email", zap.Error(serr))
				}
			}
			m.token = creds.SessionID
			*s = Snapshot{State: StateAuthenticated, Email: email}
			m.logger.Info("session restored", zap.String("email", email))
			return nil

		case err == nil || advisoryapi.IsAuth(err):
			m.token = ""
			*s = Snapshot{State: StateUnauthenticated}
			m.logger.Info("persisted session rejected")
			if cerr := m.store.Clear(ctx); cerr != nil {
				ierr := advisoryapi.Internal("Could not remove saved session", cerr)
				s.Err = ierr
				return ierr
			}
			return nil

		default:
			// Server unreachable or misbehaving; the saved session may still
			// be good next time.
			m.token = ""
			*s = Snapshot{State: StateUnauthenticated, Err: err}
			m.logger.Warn("session check failed", zap.Error(err))
			return err
		}
	})
}

// SendOTP asks the server to email a code to email. On success the manager
// moves to StateAwaitingOTP; a failure leaves the state unchanged.
func (m *Manager) SendOTP(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)

	ticket, err := m.ticketIf(func(s Snapshot) error {
		if s.State == StateAuthenticated {
			return advisoryapi.Validation("Already signed in as %s", s.Email)
		}
		return ValidateEmail(email)
	})
	if err != nil {
		return err
	}

	resp, err := m.auth.SendOTP(ctx, email)

	_, err = m.apply(ticket, func(s *Snapshot) error {
		if err != nil {
			s.Err = err
			return err
		}
		if resp.OTP != "" {
			m.logger.Debug("server echoed one-time code", zap.String("email", email), zap.String("otp", resp.OTP))
		}
		*s = Snapshot{State: StateAwaitingOTP, PendingEmail: email}
		return nil
	})
	return err
}

// VerifyOTP exchanges code for a session. An empty email means the pending
// one. The code must already be CodeLength digits; it is rejected locally
// otherwise. On failure the manager stays in StateAwaitingOTP and keeps the
// pending email.
func (m *Manager) VerifyOTP(ctx context.Context, email, code string) error {
	email = strings.TrimSpace(email)

	ticket, err := m.ticketIf(func(s Snapshot) error {
		if s.State != StateAwaitingOTP {
			return advisoryapi.Validation("Request a code before verifying")
		}
		if email == "" {
			email = s.PendingEmail
		}
		if !ValidCode(code) {
			return advisoryapi.Validation("Enter the %d-digit code from your email", CodeLength)
		}
		return nil
	})
	if err != nil {
		return err
	}

	resp, err := m.auth.VerifyOTP(ctx, email, code)

	_, err = m.apply(ticket, func(s *Snapshot) error {
		if err != nil {
			s.Err = err
			return err
		}

		creds := credstore.Credentials{SessionID: resp.SessionID, Email: resp.Email}
		if creds.Email == "" {
			creds.Email = email
		}
		if creds.SessionID == "" {
			ierr := advisoryapi.Internal("Server did not issue a session", nil)
			s.Err = ierr
			return ierr
		}
		if serr := m.store.Save(ctx, creds); serr != nil {
			ierr := advisoryapi.Internal("Could not save session", serr)
			s.Err = ierr
			return ierr
		}

		m.token = creds.SessionID
		*s = Snapshot{State: StateAuthenticated, Email: creds.Email}
		m.logger.Info("signed in", zap.String("email", creds.Email))
		return nil
	})
	return err
}

// Logout ends the session locally first, then tells the server. The local
// outcome does not depend on the server: the state is StateUnauthenticated,
// the persisted pair is gone and the farm store is empty even when the
// server call fails. Only a local storage failure is returned.
//
// Without a live token (the last check could not reach the server) the
// persisted one is ended on the server instead.
func (m *Manager) Logout(ctx context.Context) error {
	local := context.WithoutCancel(ctx)

	var token string
	var clearErr error
	m.advance(func(s *Snapshot) {
		token = m.token
		m.token = ""
		if token == "" {
			if creds, err := m.store.Load(local); err == nil && creds != nil {
				token = creds.SessionID
			}
		}
		*s = Snapshot{State: StateUnauthenticated}
		if err := m.store.Clear(local); err != nil {
			clearErr = advisoryapi.Internal("Could not remove saved session", err)
			s.Err = clearErr
		}
	})
	if m.farm != nil {
		m.farm.Clear()
	}
	m.logger.Info("signed out")

	if token != "" {
		if err := m.auth.Logout(advisoryapi.ContextWithSession(ctx, token)); err != nil {
			m.logger.Warn("server logout failed", zap.Error(err))
		}
	}
	return clearErr
}

// Authorize attaches the session token to ctx for a protected request.
func (m *Manager) Authorize(ctx context.Context) (context.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap.State != StateAuthenticated || m.token == "" {
		return ctx, &advisoryapi.Error{Kind: advisoryapi.KindAuth, Message: "Please sign in first"}
	}
	return advisoryapi.ContextWithSession(ctx, m.token), nil
}

// Invalidate handles a 401 from a protected request made with ctx. It ends
// the session only if ctx carried the current token, so a late rejection of
// an older session cannot sign out a newer one.
func (m *Manager) Invalidate(ctx context.Context, cause error) {
	token := advisoryapi.SessionFromContext(ctx)

	m.mu.Lock()
	current := token != "" && token == m.token && m.snap.State == StateAuthenticated
	m.mu.Unlock()
	if !current {
		return
	}

	invalidated := false
	m.advance(func(s *Snapshot) {
		// Recheck: a logout may have landed between the two locks.
		if m.token != token {
			return
		}
		invalidated = true
		m.token = ""
		*s = Snapshot{State: StateUnauthenticated, Err: cause}
		if err := m.store.Clear(ctx); err != nil {
			m.logger.Warn("could not remove saved session", zap.Error(err))
		}
	})
	if !invalidated {
		return
	}
	if m.farm != nil {
		m.farm.Clear()
	}
	m.logger.Info("session invalidated by server", zap.Error(cause))
}

// ticketIf checks the current snapshot and, if check passes, starts a new
// generation without publishing a transition.
func (m *Manager) ticketIf(check func(Snapshot) error) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := check(m.snap); err != nil {
		return 0, err
	}
	m.gen++
	m.snap.Generation = m.gen
	return m.gen, nil
}

// advance starts a new generation, applies fn and publishes the result.
func (m *Manager) advance(fn func(*Snapshot)) uint64 {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	m.gen++
	next := m.snap
	fn(&next)
	next.Generation = m.gen
	m.snap = next
	ticket := m.gen
	subs := m.subscribersLocked()
	m.mu.Unlock()

	for _, sub := range subs {
		sub.fn(next)
	}
	return ticket
}

// apply runs fn for the response to the request started at ticket, unless
// a newer operation has started since.
func (m *Manager) apply(ticket uint64, fn func(*Snapshot) error) (Snapshot, error) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if ticket != m.gen {
		current := m.snap
		m.mu.Unlock()
		m.logger.Debug("discarding superseded session response",
			zap.Uint64("ticket", ticket), zap.Uint64("generation", current.Generation))
		return current, ErrSuperseded
	}
	next := m.snap
	err := fn(&next)
	next.Generation = m.gen
	m.snap = next
	subs := m.subscribersLocked()
	m.mu.Unlock()

	for _, sub := range subs {
		sub.fn(next)
	}
	return next, err
}

func (m *Manager) subscribersLocked() []subscriber {
	subs := make([]subscriber, len(m.subs))
	copy(subs, m.subs)
	return subs
}
