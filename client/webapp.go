package client

import (
	"net/url"
	"strings"
	"sync"

	miniauth "github.com/velora-app/miniapp-session"
)

// HostEnvironment is the read surface of the embedding client that identity
// resolution needs.
type HostEnvironment interface {
	// InitDataUser is the structured identity the SDK exposes after init, or
	// nil when the platform did not provide one.
	InitDataUser() *miniauth.ExternalIdentity
	// LaunchFragment is the raw URL fragment the application was opened with.
	LaunchFragment() string
	// LegacyInitPayload is the embedded-view initialization blob older
	// desktop clients pass instead of the fragment.
	LegacyInitPayload() string
	UserAgent() string
	// IsTelegram reports whether the host looks like the expected embedding
	// client at all.
	IsTelegram() bool
}

// Host is the full host handle the orchestrator owns: environment state plus
// a readiness signal.
type Host interface {
	HostEnvironment
	// Ready is closed once SDK initialization has resolved.
	Ready() <-chan struct{}
}

// WebApp is an explicitly constructed handle on the Telegram host
// environment. It is owned by the orchestrator's lifecycle and injected
// where needed; there is deliberately no package-level instance.
type WebApp struct {
	mu             sync.Mutex
	readyOnce      sync.Once
	ready          chan struct{}
	user           *miniauth.ExternalIdentity
	launchFragment string
	legacyPayload  string
	userAgent      string
}

var _ Host = (*WebApp)(nil)

// WebAppOption customizes host handle construction.
type WebAppOption func(*WebApp)

// WithLaunchURL seeds the handle from the full launch URL; only the fragment
// is retained.
func WithLaunchURL(raw string) WebAppOption {
	return func(w *WebApp) {
		if u, err := url.Parse(raw); err == nil {
			w.launchFragment = u.Fragment
		}
	}
}

// WithLaunchFragment seeds the raw fragment directly.
func WithLaunchFragment(fragment string) WebAppOption {
	return func(w *WebApp) {
		w.launchFragment = strings.TrimPrefix(fragment, "#")
	}
}

// WithUserAgent records the host user agent.
func WithUserAgent(ua string) WebAppOption {
	return func(w *WebApp) {
		w.userAgent = ua
	}
}

// WithInitDataUser seeds the structured SDK identity.
func WithInitDataUser(user *miniauth.ExternalIdentity) WebAppOption {
	return func(w *WebApp) {
		w.user = user
	}
}

// WithLegacyInitPayload seeds the legacy embedded-view blob.
func WithLegacyInitPayload(payload string) WebAppOption {
	return func(w *WebApp) {
		w.legacyPayload = payload
	}
}

// NewWebApp constructs the host handle. Call MarkReady once the SDK init has
// resolved; identity may arrive before or after readiness.
func NewWebApp(opts ...WebAppOption) *WebApp {
	w := &WebApp{
		ready: make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Ready is closed once MarkReady has been called.
func (w *WebApp) Ready() <-chan struct{} {
	return w.ready
}

// MarkReady resolves host initialization. Safe to call more than once.
func (w *WebApp) MarkReady() {
	w.readyOnce.Do(func() {
		close(w.ready)
	})
}

// SetInitDataUser records a structured identity that arrived after
// construction, e.g. from a slow SDK init on desktop.
func (w *WebApp) SetInitDataUser(user *miniauth.ExternalIdentity) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.user = user
}

func (w *WebApp) InitDataUser() *miniauth.ExternalIdentity {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.user == nil {
		return nil
	}
	user := *w.user
	return &user
}

func (w *WebApp) LaunchFragment() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.launchFragment
}

func (w *WebApp) LegacyInitPayload() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.legacyPayload
}

func (w *WebApp) UserAgent() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.userAgent
}

// IsTelegram checks the identity, launch data, and user-agent signals; any
// one of them marks the host as the expected embedding client.
func (w *WebApp) IsTelegram() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.user != nil {
		return true
	}
	if strings.Contains(w.launchFragment, "tgWebAppData") || strings.Contains(w.legacyPayload, "user=") {
		return true
	}
	return strings.Contains(w.userAgent, "TelegramWebApp") || strings.Contains(w.userAgent, "Telegram")
}
