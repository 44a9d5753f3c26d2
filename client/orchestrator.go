package client

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"

	miniauth "github.com/velora-app/miniapp-session"
)

// State is the orchestrator's observable lifecycle phase.
type State string

const (
	StateHostInit            State = "host_init"
	StateIdentityPending     State = "identity_pending"
	StateExchanging          State = "exchanging"
	StateAuthenticated       State = "authenticated"
	StateRedirected          State = "redirected"
	StateHostUnavailable     State = "host_unavailable"
	StateIdentityUnavailable State = "identity_unavailable"
	StateExchangeFailed      State = "exchange_failed"
)

// Landing routes the orchestrator navigates to after a successful exchange.
const (
	LandingRoute     = "/services"
	ProfileEditRoute = "/profile/edit"
)

// DefaultGracePeriod is how long the orchestrator waits after the primary
// navigation before deciding whether the fallback path is needed.
const DefaultGracePeriod = 300 * time.Millisecond

const defaultPollInterval = 100 * time.Millisecond

// Navigator performs a client side route change.
type Navigator interface {
	Push(path string) error
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(path string) error

func (f NavigatorFunc) Push(path string) error { return f(path) }

// Orchestrator drives the session bootstrap: waits for the host, resolves an
// identity, exchanges it for a credential, and routes the user to a landing
// page. The exchange and navigation each fire at most once per arming; Retry
// re-arms after a failed exchange.
type Orchestrator struct {
	host     Host
	api      ExchangeAPI
	store    TokenStore
	nav      Navigator
	fallback Navigator
	logger   miniauth.Logger
	grace    time.Duration
	poll     time.Duration
	wait     func(ctx context.Context, d time.Duration) error
	confirm  func() bool

	mu            sync.Mutex
	state         State
	lastErr       error
	user          *ExchangeUser
	identity      *miniauth.ExternalIdentity
	exchangeFired bool
	navPerformed  bool
	fallbackUsed  bool
	closed        bool
}

// OrchestratorOption customizes orchestrator construction.
type OrchestratorOption func(*Orchestrator)

// WithFallbackNavigator sets the secondary navigation mechanism used when the
// primary one cannot be confirmed.
func WithFallbackNavigator(nav Navigator) OrchestratorOption {
	return func(o *Orchestrator) {
		if nav != nil {
			o.fallback = nav
		}
	}
}

// WithOrchestratorLogger overrides the logger.
func WithOrchestratorLogger(logger miniauth.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithGracePeriod overrides the post-navigation grace period.
func WithGracePeriod(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.grace = d
		}
	}
}

// WithPollInterval overrides the identity polling cadence.
func WithPollInterval(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.poll = d
		}
	}
}

// WithWaitFunc replaces the sleep used for the grace period, letting tests
// run without real delays.
func WithWaitFunc(wait func(ctx context.Context, d time.Duration) error) OrchestratorOption {
	return func(o *Orchestrator) {
		if wait != nil {
			o.wait = wait
		}
	}
}

// WithConfirmFunc replaces the navigation confirmation probe.
func WithConfirmFunc(confirm func() bool) OrchestratorOption {
	return func(o *Orchestrator) {
		if confirm != nil {
			o.confirm = confirm
		}
	}
}

// NewOrchestrator wires the session bootstrap. The host, API client, and
// primary navigator are required; everything else has working defaults.
func NewOrchestrator(host Host, api ExchangeAPI, nav Navigator, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		host:   host,
		api:    api,
		store:  NewMemoryTokenStore(),
		nav:    nav,
		logger: noopLogger{},
		grace:  DefaultGracePeriod,
		poll:   defaultPollInterval,
		state:  StateHostInit,
		wait: func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// WithTokenStore sets the credential store.
func WithTokenStore(store TokenStore) OrchestratorOption {
	return func(o *Orchestrator) {
		if store != nil {
			o.store = store
		}
	}
}

// State returns the current lifecycle phase.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Err returns the error that moved the orchestrator into a failure state.
func (o *Orchestrator) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// CurrentUser returns the exchanged user, nil before authentication.
func (o *Orchestrator) CurrentUser() *ExchangeUser {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.user
}

// Close stops the orchestrator. Results from exchanges still in flight are
// discarded.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
}

// Retry re-arms the exchange after a failure and runs the bootstrap again.
// It is a no-op unless the orchestrator is in the exchange-failed state.
func (o *Orchestrator) Retry(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return goerrors.New("orchestrator is closed", goerrors.CategoryOperation)
	}
	if o.state != StateExchangeFailed {
		o.mu.Unlock()
		return nil
	}
	o.exchangeFired = false
	o.navPerformed = false
	o.fallbackUsed = false
	o.lastErr = nil
	o.state = StateIdentityPending
	o.mu.Unlock()

	return o.Run(ctx)
}

// Run executes the bootstrap sequence. It blocks until the session is
// established and navigation settles, or a terminal state is reached.
func (o *Orchestrator) Run(ctx context.Context) error {
	select {
	case <-o.host.Ready():
	case <-ctx.Done():
		return ctx.Err()
	}

	if !o.host.IsTelegram() {
		o.fail(StateHostUnavailable, ErrNotEmbedded)
		return ErrNotEmbedded
	}

	// Stale credentials from a previous run must not leak into this one.
	o.store.Clear()

	if err := o.api.CheckHealth(ctx); err != nil {
		o.logger.Debug("backend health probe failed: %v", err)
	}

	identity, err := o.awaitIdentity(ctx)
	if err != nil {
		return err
	}

	resp, err := o.exchange(ctx, identity)
	if err != nil {
		return err
	}

	return o.navigate(ctx, resp)
}

// awaitIdentity polls the resolver until an identity surfaces. Soft misses
// keep the orchestrator in identity-pending; only context expiry ends the
// wait.
func (o *Orchestrator) awaitIdentity(ctx context.Context) (*miniauth.ExternalIdentity, error) {
	o.setState(StateIdentityPending)

	for {
		identity, err := ResolveIdentity(o.host, o.logger)
		if err == nil {
			o.mu.Lock()
			o.identity = identity
			o.mu.Unlock()
			return identity, nil
		}
		if goerrors.Is(err, ErrNotEmbedded) {
			o.fail(StateHostUnavailable, err)
			return nil, err
		}

		if waitErr := o.wait(ctx, o.poll); waitErr != nil {
			o.fail(StateIdentityUnavailable, ErrIdentityUnavailable)
			return nil, ErrIdentityUnavailable
		}
	}
}

// exchange fires the credential exchange at most once per arming. The network
// call runs outside the lock; results arriving after Close are discarded.
func (o *Orchestrator) exchange(ctx context.Context, identity *miniauth.ExternalIdentity) (*ExchangeResponse, error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, goerrors.New("orchestrator is closed", goerrors.CategoryOperation)
	}
	if o.exchangeFired {
		o.mu.Unlock()
		return nil, goerrors.New("exchange already performed", goerrors.CategoryConflict)
	}
	o.exchangeFired = true
	o.state = StateExchanging
	o.mu.Unlock()

	resp, err := o.api.Exchange(ctx, *identity)

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, goerrors.New("orchestrator is closed", goerrors.CategoryOperation)
	}
	if err != nil {
		o.state = StateExchangeFailed
		o.lastErr = err
		o.mu.Unlock()
		o.logger.Error("session exchange failed: %v", err)
		return nil, err
	}
	o.state = StateAuthenticated
	o.user = &resp.User
	o.mu.Unlock()

	o.store.SetToken(resp.Token)
	o.logger.Info("session established for user %d", resp.User.ID)
	return resp, nil
}

// landingFor picks the post-auth destination: first time users and users
// without a saved location go to profile setup, everyone else to the catalog.
func landingFor(user ExchangeUser) string {
	if user.IsNewUser || user.CityID == nil || user.DistrictID == nil {
		return ProfileEditRoute
	}
	return LandingRoute
}

// navigate performs the primary route push, waits out the grace period, and
// uses the fallback navigator exactly once if the primary could not be
// confirmed.
func (o *Orchestrator) navigate(ctx context.Context, resp *ExchangeResponse) error {
	o.mu.Lock()
	if o.closed || o.navPerformed {
		o.mu.Unlock()
		return nil
	}
	o.navPerformed = true
	o.mu.Unlock()

	target := landingFor(resp.User)

	primaryErr := o.nav.Push(target)
	if primaryErr != nil {
		o.logger.Debug("primary navigation to %s failed: %v", target, primaryErr)
	}

	if err := o.wait(ctx, o.grace); err != nil {
		return err
	}

	confirmed := primaryErr == nil
	if o.confirm != nil {
		confirmed = o.confirm()
	}

	if !confirmed && o.fallback != nil {
		o.mu.Lock()
		fire := !o.fallbackUsed && !o.closed
		o.fallbackUsed = true
		o.mu.Unlock()

		if fire {
			if err := o.fallback.Push(target); err != nil {
				o.logger.Error("fallback navigation to %s failed: %v", target, err)
			}
		}
	}

	o.setState(StateRedirected)
	return nil
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	if !o.closed {
		o.state = s
	}
	o.mu.Unlock()
}

func (o *Orchestrator) fail(s State, err error) {
	o.mu.Lock()
	if !o.closed {
		o.state = s
		o.lastErr = err
	}
	o.mu.Unlock()
}
