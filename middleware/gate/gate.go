// Package gate intercepts every inbound request and classifies it as static,
// native-auth exchange, public, or protected before any handler runs. It is
// the only place routing policy lives: a public allow-list, a gated prefix
// list, and a static-asset skip list.
package gate

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"

	miniauth "github.com/velora-app/miniapp-session"
)

const (
	// HeaderMiniApp is the explicit native-client request marker.
	HeaderMiniApp = "X-Telegram-Mini-App"
	// HeaderClientType tags responses served to native clients.
	HeaderClientType = "X-Telegram-Client-Type"
	// HeaderSDKVersion advertises the SDK version to native clients.
	HeaderSDKVersion = "X-Telegram-Sdk-Version"
)

// Config controls the gate. Zero values are filled by GetDefaultConfig.
type Config struct {
	// Verifier validates presented credentials. Required.
	Verifier miniauth.TokenVerifier

	// ContextKey is where the verified session is stashed in ctx.Locals.
	ContextKey string
	// CookieName is the credential cookie, preferred over the header.
	CookieName string
	// AuthScheme prefixes the Authorization header value.
	AuthScheme string

	// PublicRoutes always pass without a session. Entries are exact paths or
	// wildcard-suffix patterns ("/api/categories(.*)").
	PublicRoutes []string
	// GatedPrefixes limit the gate's reach; paths matching none of them pass
	// through ungated. Same pattern syntax as PublicRoutes.
	GatedPrefixes []string
	// StaticPrefixes and AssetExtensions short-circuit asset traffic.
	StaticPrefixes  []string
	AssetExtensions []string

	// ExchangePrefix exempts the native auth exchange endpoints.
	ExchangePrefix string
	// APIPrefix separates JSON rejection from page redirects.
	APIPrefix string
	// RedirectTarget is where unauthenticated page requests go.
	RedirectTarget string

	// SDKVersion is echoed in the native-client response tag.
	SDKVersion string

	Logger  miniauth.Logger
	Metrics *Metrics
}

var defaultAssetExtensions = []string{".jpg", ".png", ".gif", ".ico", ".css", ".js"}

// GetDefaultConfig fills in the gate defaults.
func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Verifier == nil {
		panic("GATE: middleware configuration: Verifier is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "session"
	}
	if cfg.CookieName == "" {
		cfg.CookieName = miniauth.CookieName
	}
	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}
	if cfg.ExchangePrefix == "" {
		cfg.ExchangePrefix = "/api/auth"
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/"
	}
	if cfg.RedirectTarget == "" {
		cfg.RedirectTarget = "/"
	}
	if cfg.SDKVersion == "" {
		cfg.SDKVersion = "3.4.0"
	}
	if len(cfg.AssetExtensions) == 0 {
		cfg.AssetExtensions = defaultAssetExtensions
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}

	return cfg
}

// New returns the gate middleware.
func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)

	public := compileMatchers(cfg.PublicRoutes)
	gated := compileMatchers(cfg.GatedPrefixes)
	extractors := []tokenExtractor{
		tokenFromCookie(cfg.CookieName),
		tokenFromHeader(fiber.HeaderAuthorization, cfg.AuthScheme),
	}

	return func(ctx *fiber.Ctx) error {
		path := ctx.Path()

		if cfg.isStatic(path) {
			cfg.Metrics.observe(OutcomeStatic)
			return ctx.Next()
		}

		// gate scope: everything outside the gated prefixes is not ours
		if len(gated) > 0 && !matchAny(gated, path) {
			cfg.Metrics.observe(OutcomeUngated)
			return ctx.Next()
		}

		native := isNativeClient(ctx)

		session := cfg.resolveSession(ctx, extractors)
		isPublic := matchAny(public, path)
		isAPI := strings.HasPrefix(path, cfg.APIPrefix)

		if isAPI && strings.HasPrefix(path, cfg.ExchangePrefix) {
			cfg.Metrics.observe(OutcomePass)
			return ctx.Next()
		}

		if session != nil {
			ctx.Locals(cfg.ContextKey, session)
			if native {
				cfg.tagNativeResponse(ctx)
			}
			cfg.Metrics.observe(OutcomePass)
			return ctx.Next()
		}

		if isPublic {
			cfg.Metrics.observe(OutcomePass)
			return ctx.Next()
		}

		// no session, not public
		if isAPI || native {
			cfg.Logger.Info("Gate rejected request for %s (native=%t)", path, native)
			cfg.Metrics.observe(OutcomeUnauthorized)
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":      "Unauthorized",
				"clientType": miniauth.ClientTypeMiniApp,
			})
		}

		cfg.Logger.Info("Gate redirecting unauthenticated request for %s", path)
		cfg.Metrics.observe(OutcomeRedirect)
		return ctx.Redirect(cfg.RedirectTarget, fiber.StatusFound)
	}
}

// Session returns the gate-established session, or nil when the request was
// not authenticated.
func Session(ctx *fiber.Ctx, contextKey string) *miniauth.SessionObject {
	if contextKey == "" {
		contextKey = "session"
	}
	session, _ := ctx.Locals(contextKey).(*miniauth.SessionObject)
	return session
}

func (cfg Config) isStatic(path string) bool {
	for _, prefix := range cfg.StaticPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	for _, ext := range cfg.AssetExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// resolveSession extracts and verifies a presented credential. Invalid or
// expired tokens degrade to "no session"; they never abort the request here.
func (cfg Config) resolveSession(ctx *fiber.Ctx, extractors []tokenExtractor) *miniauth.SessionObject {
	var raw string
	for _, extract := range extractors {
		if raw = extract(ctx); raw != "" {
			break
		}
	}
	if raw == "" {
		return nil
	}

	claims, err := cfg.Verifier.Validate(raw)
	if err != nil {
		cfg.Logger.Debug("Gate token rejected: %v", err)
		return nil
	}

	session, err := miniauth.SessionFromClaims(claims)
	if err != nil {
		cfg.Logger.Debug("Gate claims rejected: %v", err)
		return nil
	}

	return session
}

func (cfg Config) tagNativeResponse(ctx *fiber.Ctx) {
	ctx.Set(HeaderClientType, miniauth.ClientTypeMiniApp)
	ctx.Set(HeaderSDKVersion, cfg.SDKVersion)
}

// isNativeClient checks the explicit marker header and the user-agent
// heuristic. The signal relaxes exchange access and tags responses; it never
// substitutes for a session on protected routes.
func isNativeClient(ctx *fiber.Ctx) bool {
	if ctx.Get(HeaderMiniApp) == "true" {
		return true
	}
	ua := ctx.Get(fiber.HeaderUserAgent)
	return strings.Contains(ua, "TelegramWebApp") || strings.Contains(ua, "Telegram")
}

// routeMatcher matches one public/gated pattern: exact path, or a
// "(.*)"-suffixed wildcard compiled to a regexp as in the original policy
// tables.
type routeMatcher struct {
	exact string
	re    *regexp.Regexp
}

func (m routeMatcher) matches(path string) bool {
	if m.re != nil {
		return m.re.MatchString(path)
	}
	return m.exact == path
}

func compileMatchers(patterns []string) []routeMatcher {
	matchers := make([]routeMatcher, 0, len(patterns))
	for _, pattern := range patterns {
		if strings.Contains(pattern, "(.*)") {
			expr := "^" + strings.ReplaceAll(regexp.QuoteMeta(pattern), regexp.QuoteMeta("(.*)"), ".*") + "$"
			if re, err := regexp.Compile(expr); err == nil {
				matchers = append(matchers, routeMatcher{re: re})
			}
			continue
		}
		matchers = append(matchers, routeMatcher{exact: pattern})
	}
	return matchers
}

func matchAny(matchers []routeMatcher, path string) bool {
	for _, m := range matchers {
		if m.matches(path) {
			return true
		}
	}
	return false
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
