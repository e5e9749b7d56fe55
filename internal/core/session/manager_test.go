package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/neilberkman/fieldhand/internal/core/advisoryapi"
	"github.com/neilberkman/fieldhand/internal/core/credstore"
	"github.com/neilberkman/fieldhand/internal/core/farmstate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAuth is a scripted Authenticator that records the calls it receives.
type fakeAuth struct {
	mu     sync.Mutex
	calls  map[string]int
	tokens []string

	send   func(email string) (*advisoryapi.SendOTPResponse, error)
	verify func(email, otp string) (*advisoryapi.VerifyOTPResponse, error)
	check  func(ctx context.Context) (*advisoryapi.SessionStatus, error)
	logout error
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{calls: map[string]int{}}
}

func (f *fakeAuth) record(op string, ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	if tok := advisoryapi.SessionFromContext(ctx); tok != "" {
		f.tokens = append(f.tokens, tok)
	}
}

func (f *fakeAuth) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAuth) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeAuth) SendOTP(ctx context.Context, email string) (*advisoryapi.SendOTPResponse, error) {
	f.record("send", ctx)
	if f.send != nil {
		return f.send(email)
	}
	return &advisoryapi.SendOTPResponse{Message: "OTP sent", Email: email}, nil
}

func (f *fakeAuth) VerifyOTP(ctx context.Context, email, otp string) (*advisoryapi.VerifyOTPResponse, error) {
	f.record("verify", ctx)
	return f.verify(email, otp)
}

func (f *fakeAuth) CheckSession(ctx context.Context) (*advisoryapi.SessionStatus, error) {
	f.record("check", ctx)
	return f.check(ctx)
}

func (f *fakeAuth) Logout(ctx context.Context) error {
	f.record("logout", ctx)
	return f.logout
}

type failingLoadStore struct {
	credstore.Store
}

func (failingLoadStore) Load(context.Context) (*credstore.Credentials, error) {
	return nil, errors.New("disk on fire")
}

func persisted(t *testing.T, s credstore.Store) *credstore.Credentials {
	t.Helper()
	creds, err := s.Load(context.Background())
	require.NoError(t, err)
	return creds
}

func seeded(t *testing.T, sessionID, email string) credstore.Store {
	t.Helper()
	s := credstore.NewMemoryStore()
	require.NoError(t, s.Save(context.Background(), credstore.Credentials{SessionID: sessionID, Email: email}))
	return s
}

var (
	errUnauthorized = &advisoryapi.Error{Kind: advisoryapi.KindAuth, Status: 401, Message: "Not authenticated"}
	errNetwork      = &advisoryapi.Error{Kind: advisoryapi.KindNetwork, Message: "advisory service is unreachable"}
	errInvalidOTP   = &advisoryapi.Error{Kind: advisoryapi.KindServer, Status: 400, Message: "Invalid OTP"}
)

func TestNew_StartsCheckingSession(t *testing.T) {
	m := New(newFakeAuth(), credstore.NewMemoryStore())
	assert.Equal(t, StateCheckingSession, m.Snapshot().State)
	assert.False(t, m.Snapshot().Authenticated())
}

func TestCheckSession_NoPersistedToken(t *testing.T) {
	auth := newFakeAuth()
	m := New(auth, credstore.NewMemoryStore())

	snap, err := m.CheckSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateUnauthenticated, snap.State)
	assert.Zero(t, auth.total(), "no request without a persisted token")
}

func TestCheckSession_ServerConfirmsDifferentEmail(t *testing.T) {
	auth := newFakeAuth()
	auth.check = func(context.Context) (*advisoryapi.SessionStatus, error) {
		return &advisoryapi.SessionStatus{Authenticated: true, Email: "new@example.com"}, nil
	}
	store := seeded(t, "abc", "old@example.com")
	m := New(auth, store)

	snap, err := m.CheckSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, snap.State)
	assert.Equal(t, "new@example.com", snap.Email)
	assert.Equal(t, []string{"abc"}, auth.tokens)

	creds := persisted(t, store)
	require.NotNil(t, creds)
	assert.Equal(t, credstore.Credentials{SessionID: "abc", Email: "new@example.com"}, *creds)
}

func TestCheckSession_RejectedClearsPersisted(t *testing.T) {
	tests := []struct {
		name  string
		check func(context.Context) (*advisoryapi.SessionStatus, error)
	}{
		{"401", func(context.Context) (*advisoryapi.SessionStatus, error) { return nil, errUnauthorized }},
		{"authenticated false", func(context.Context) (*advisoryapi.SessionStatus, error) {
			return &advisoryapi.SessionStatus{Authenticated: false}, nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := newFakeAuth()
			auth.check = tt.check
			store := seeded(t, "abc", "farmer@example.com")
			m := New(auth, store)

			snap, err := m.CheckSession(context.Background())
			require.NoError(t, err)
			assert.Equal(t, StateUnauthenticated, snap.State)
			assert.Nil(t, persisted(t, store))
		})
	}
}

func TestCheckSession_TransientFailureKeepsToken(t *testing.T) {
	for _, cause := range []error{errNetwork, &advisoryapi.Error{Kind: advisoryapi.KindServer, Status: 503, Message: "maintenance"}} {
		t.Run(cause.Error(), func(t *testing.T) {
			auth := newFakeAuth()
			auth.check = func(context.Context) (*advisoryapi.SessionStatus, error) { return nil, cause }
			store := seeded(t, "abc", "farmer@example.com")
			m := New(auth, store)

			snap, err := m.CheckSession(context.Background())
			require.Error(t, err)
			assert.Equal(t, cause, err)
			assert.Equal(t, StateUnauthenticated, snap.State)
			assert.Equal(t, cause, snap.Err)

			creds := persisted(t, store)
			require.NotNil(t, creds, "transient failure must not clear the saved session")
			assert.Equal(t, "abc", creds.SessionID)
		})
	}
}

func TestCheckSession_StoreFailureIsInternal(t *testing.T) {
	auth := newFakeAuth()
	m := New(auth, failingLoadStore{credstore.NewMemoryStore()})

	snap, err := m.CheckSession(context.Background())
	require.Error(t, err)
	assert.Equal(t, advisoryapi.KindInternal, advisoryapi.KindOf(err))
	assert.Equal(t, StateUnauthenticated, snap.State)
	assert.Zero(t, auth.total())
}

func TestSendOTP_Validation(t *testing.T) {
	tests := []struct {
		name  string
		email string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"no at sign", "farmer.example.com"},
		{"display name", "Farmer <farmer@example.com>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := newFakeAuth()
			m := New(auth, credstore.NewMemoryStore())
			_, _ = m.CheckSession(context.Background())
			before := m.Snapshot().State

			err := m.SendOTP(context.Background(), tt.email)
			require.Error(t, err)
			assert.Equal(t, advisoryapi.KindValidation, advisoryapi.KindOf(err))
			assert.Equal(t, before, m.Snapshot().State)
			assert.Zero(t, auth.count("send"))
		})
	}
}

func TestSendOTP_ServerErrorKeepsState(t *testing.T) {
	auth := newFakeAuth()
	auth.send = func(string) (*advisoryapi.SendOTPResponse, error) {
		return nil, &advisoryapi.Error{Kind: advisoryapi.KindServer, Status: 500, Message: "Failed to send OTP"}
	}
	m := New(auth, credstore.NewMemoryStore())
	_, _ = m.CheckSession(context.Background())

	err := m.SendOTP(context.Background(), "farmer@example.com")
	require.Error(t, err)
	assert.Equal(t, advisoryapi.KindServer, advisoryapi.KindOf(err))
	snap := m.Snapshot()
	assert.Equal(t, StateUnauthenticated, snap.State)
	assert.Equal(t, "Failed to send OTP", snap.Err.Error())
}

func TestVerifyOTP_RejectsMalformedCodeLocally(t *testing.T) {
	for _, code := range []string{"", "12345", "1234567", "12a456", "12 456"} {
		t.Run(code, func(t *testing.T) {
			auth := newFakeAuth()
			m := New(auth, credstore.NewMemoryStore())
			_, _ = m.CheckSession(context.Background())
			require.NoError(t, m.SendOTP(context.Background(), "farmer@example.com"))

			err := m.VerifyOTP(context.Background(), "farmer@example.com", code)
			require.Error(t, err)
			assert.Equal(t, advisoryapi.KindValidation, advisoryapi.KindOf(err))
			assert.Zero(t, auth.count("verify"))
			assert.Equal(t, StateAwaitingOTP, m.Snapshot().State)
		})
	}
}

func TestVerifyOTP_RequiresPendingCode(t *testing.T) {
	auth := newFakeAuth()
	m := New(auth, credstore.NewMemoryStore())
	_, _ = m.CheckSession(context.Background())

	err := m.VerifyOTP(context.Background(), "farmer@example.com", "123456")
	assert.Equal(t, advisoryapi.KindValidation, advisoryapi.KindOf(err))
	assert.Zero(t, auth.count("verify"))
}

func TestLoginThenReload(t *testing.T) {
	ctx := context.Background()
	store := credstore.NewMemoryStore()

	auth := newFakeAuth()
	auth.verify = func(email, otp string) (*advisoryapi.VerifyOTPResponse, error) {
		assert.Equal(t, "farmer@example.com", email)
		assert.Equal(t, "123456", otp)
		return &advisoryapi.VerifyOTPResponse{Message: "Login successful", SessionID: "abc", Email: "farmer@example.com"}, nil
	}
	m := New(auth, store)

	_, err := m.CheckSession(ctx)
	require.NoError(t, err)
	require.NoError(t, m.SendOTP(ctx, "farmer@example.com"))
	assert.Equal(t, StateAwaitingOTP, m.Snapshot().State)
	assert.Equal(t, "farmer@example.com", m.Snapshot().PendingEmail)

	require.NoError(t, m.VerifyOTP(ctx, "farmer@example.com", "123456"))
	snap := m.Snapshot()
	assert.Equal(t, StateAuthenticated, snap.State)
	assert.Equal(t, "farmer@example.com", snap.Email)
	assert.Equal(t, &credstore.Credentials{SessionID: "abc", Email: "farmer@example.com"}, persisted(t, store))

	// Reload: a fresh manager over the same persisted pair
	reload := newFakeAuth()
	reload.check = func(ctx context.Context) (*advisoryapi.SessionStatus, error) {
		assert.Equal(t, "abc", advisoryapi.SessionFromContext(ctx))
		return &advisoryapi.SessionStatus{Authenticated: true, Email: "farmer@example.com"}, nil
	}
	m2 := New(reload, store)
	snap, err = m2.CheckSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, snap.State)
	assert.Equal(t, "farmer@example.com", snap.Email)
}

func TestVerifyOTP_WrongCode(t *testing.T) {
	ctx := context.Background()
	auth := newFakeAuth()
	auth.verify = func(string, string) (*advisoryapi.VerifyOTPResponse, error) { return nil, errInvalidOTP }
	store := credstore.NewMemoryStore()
	m := New(auth, store)

	_, _ = m.CheckSession(ctx)
	require.NoError(t, m.SendOTP(ctx, "farmer@example.com"))

	err := m.VerifyOTP(ctx, "farmer@example.com", "000000")
	require.Error(t, err)
	assert.Equal(t, "Invalid OTP", err.Error())

	snap := m.Snapshot()
	assert.Equal(t, StateAwaitingOTP, snap.State)
	assert.Equal(t, "Invalid OTP", snap.Err.Error())
	assert.Equal(t, "farmer@example.com", snap.PendingEmail)
	assert.Nil(t, persisted(t, store))
}

func TestVerifyOTP_DefaultsToPendingEmail(t *testing.T) {
	ctx := context.Background()
	auth := newFakeAuth()
	auth.verify = func(email, _ string) (*advisoryapi.VerifyOTPResponse, error) {
		return &advisoryapi.VerifyOTPResponse{SessionID: "abc", Email: email}, nil
	}
	m := New(auth, credstore.NewMemoryStore())
	_, _ = m.CheckSession(ctx)
	require.NoError(t, m.SendOTP(ctx, "farmer@example.com"))

	require.NoError(t, m.VerifyOTP(ctx, "", "123456"))
	assert.Equal(t, "farmer@example.com", m.Snapshot().Email)
}

func TestSendOTP_RejectedWhenAuthenticated(t *testing.T) {
	ctx := context.Background()
	auth := newFakeAuth()
	auth.check = func(context.Context) (*advisoryapi.SessionStatus, error) {
		return &advisoryapi.SessionStatus{Authenticated: true, Email: "farmer@example.com"}, nil
	}
	m := New(auth, seeded(t, "abc", "farmer@example.com"))
	_, err := m.CheckSession(ctx)
	require.NoError(t, err)

	err = m.SendOTP(ctx, "other@example.com")
	assert.Equal(t, advisoryapi.KindValidation, advisoryapi.KindOf(err))
	assert.Equal(t, StateAuthenticated, m.Snapshot().State)
}

func TestLogout_ServerFailureStillSignsOut(t *testing.T) {
	ctx := context.Background()
	auth := newFakeAuth()
	auth.check = func(context.Context) (*advisoryapi.SessionStatus, error) {
		return &advisoryapi.SessionStatus{Authenticated: true, Email: "farmer@example.com"}, nil
	}
	auth.logout = errNetwork

	store := seeded(t, "abc", "farmer@example.com")
	farm := farmstate.New()
	m := New(auth, store, WithFarmState(farm))

	_, err := m.CheckSession(ctx)
	require.NoError(t, err)
	require.NoError(t, farm.RecordResult(farmstate.Result{
		Soil:          &advisoryapi.SoilAnalysis{OverallHealth: "Good"},
		Crops:         []advisoryapi.CropRecommendation{{Crop: "Rice"}},
		CropsProvided: true,
	}))

	require.NoError(t, m.Logout(ctx))

	assert.Equal(t, StateUnauthenticated, m.Snapshot().State)
	assert.Nil(t, persisted(t, store))
	assert.True(t, farm.State().Empty())
	assert.Equal(t, 1, auth.count("logout"))
	assert.Contains(t, auth.tokens, "abc")

	_, err = m.Authorize(ctx)
	assert.True(t, advisoryapi.IsAuth(err))
}

func TestLogout_WithoutSessionSkipsServer(t *testing.T) {
	auth := newFakeAuth()
	m := New(auth, credstore.NewMemoryStore())
	require.NoError(t, m.Logout(context.Background()))
	assert.Zero(t, auth.count("logout"))
	assert.Equal(t, StateUnauthenticated, m.Snapshot().State)
}

func TestLogout_EndsPersistedSessionAfterFailedCheck(t *testing.T) {
	ctx := context.Background()
	auth := newFakeAuth()
	auth.check = func(context.Context) (*advisoryapi.SessionStatus, error) { return nil, errNetwork }
	store := seeded(t, "abc", "farmer@example.com")
	m := New(auth, store)

	_, err := m.CheckSession(ctx)
	require.Error(t, err)
	require.NotNil(t, persisted(t, store))

	require.NoError(t, m.Logout(ctx))

	assert.Equal(t, 1, auth.count("logout"))
	assert.Equal(t, []string{"abc", "abc"}, auth.tokens, "check and logout both carry the saved session")
	assert.Nil(t, persisted(t, store))
	assert.Equal(t, StateUnauthenticated, m.Snapshot().State)
}

// ctxStore fails writes on a done context, the way a database would.
type ctxStore struct {
	credstore.Store
}

func (s ctxStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Store.Clear(ctx)
}

func TestLogout_CancelledContextStillClears(t *testing.T) {
	auth := newFakeAuth()
	auth.check = func(context.Context) (*advisoryapi.SessionStatus, error) {
		return &advisoryapi.SessionStatus{Authenticated: true, Email: "farmer@example.com"}, nil
	}
	store := ctxStore{seeded(t, "abc", "farmer@example.com")}
	m := New(auth, store)

	_, err := m.CheckSession(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, m.Logout(ctx))

	assert.Nil(t, persisted(t, store))
	assert.Equal(t, StateUnauthenticated, m.Snapshot().State)
}

func TestLateCheckAfterLogoutIsDiscarded(t *testing.T) {
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})

	auth := newFakeAuth()
	auth.check = func(context.Context) (*advisoryapi.SessionStatus, error) {
		close(started)
		<-release
		return &advisoryapi.SessionStatus{Authenticated: true, Email: "farmer@example.com"}, nil
	}
	store := seeded(t, "abc", "farmer@example.com")
	m := New(auth, store)

	done := make(chan error, 1)
	go func() {
		_, err := m.CheckSession(ctx)
		done <- err
	}()

	<-started
	require.NoError(t, m.Logout(ctx))
	close(release)

	assert.ErrorIs(t, <-done, ErrSuperseded)
	assert.Equal(t, StateUnauthenticated, m.Snapshot().State)
	assert.Nil(t, persisted(t, store), "late response must not restore the session")
}

func TestLateVerifyAfterLogoutIsDiscarded(t *testing.T) {
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})

	auth := newFakeAuth()
	auth.verify = func(email, _ string) (*advisoryapi.VerifyOTPResponse, error) {
		close(started)
		<-release
		return &advisoryapi.VerifyOTPResponse{SessionID: "abc", Email: email}, nil
	}
	store := credstore.NewMemoryStore()
	m := New(auth, store)
	_, _ = m.CheckSession(ctx)
	require.NoError(t, m.SendOTP(ctx, "farmer@example.com"))

	done := make(chan error, 1)
	go func() { done <- m.VerifyOTP(ctx, "", "123456") }()

	<-started
	require.NoError(t, m.Logout(ctx))
	close(release)

	assert.ErrorIs(t, <-done, ErrSuperseded)
	assert.Equal(t, StateUnauthenticated, m.Snapshot().State)
	assert.Nil(t, persisted(t, store))
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	auth := newFakeAuth()
	auth.check = func(context.Context) (*advisoryapi.SessionStatus, error) {
		return &advisoryapi.SessionStatus{Authenticated: true, Email: "farmer@example.com"}, nil
	}
	store := seeded(t, "abc", "farmer@example.com")
	farm := farmstate.New()
	m := New(auth, store, WithFarmState(farm))
	_, err := m.CheckSession(ctx)
	require.NoError(t, err)

	// A rejection of some other token is ignored
	m.Invalidate(advisoryapi.ContextWithSession(ctx, "old"), errUnauthorized)
	assert.Equal(t, StateAuthenticated, m.Snapshot().State)

	authed, err := m.Authorize(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", advisoryapi.SessionFromContext(authed))

	m.Invalidate(authed, errUnauthorized)
	snap := m.Snapshot()
	assert.Equal(t, StateUnauthenticated, snap.State)
	assert.Equal(t, errUnauthorized, snap.Err)
	assert.Nil(t, persisted(t, store))
}

func TestSubscribeSeesTransitions(t *testing.T) {
	ctx := context.Background()
	auth := newFakeAuth()
	auth.verify = func(email, _ string) (*advisoryapi.VerifyOTPResponse, error) {
		return &advisoryapi.VerifyOTPResponse{SessionID: "abc", Email: email}, nil
	}
	m := New(auth, credstore.NewMemoryStore())

	var states []State
	unsub := m.Subscribe(func(s Snapshot) { states = append(states, s.State) })

	_, _ = m.CheckSession(ctx)
	require.NoError(t, m.SendOTP(ctx, "farmer@example.com"))
	require.NoError(t, m.VerifyOTP(ctx, "", "123456"))
	unsub()
	require.NoError(t, m.Logout(ctx))

	assert.Equal(t, []State{
		StateCheckingSession,
		StateUnauthenticated,
		StateAwaitingOTP,
		StateAuthenticated,
	}, states)
}

func TestSanitizeCode(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"123456", "123456"},
		{"12-34 56", "123456"},
		{"abc", ""},
		{"1234567890", "123456"},
		{"١٢٣", ""},
	}
	for _, tt := range tests {
		if got := SanitizeCode(tt.in); got != tt.want {
			t.Errorf("SanitizeCode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
