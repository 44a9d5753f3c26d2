package gate

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	miniauth "github.com/velora-app/miniapp-session"
)

var gateSigningKey = []byte("gate-test-key")

func issueToken(t *testing.T, userID int64) string {
	t.Helper()

	svc, err := miniauth.NewTokenService(gateSigningKey)
	require.NoError(t, err)
	token, err := svc.Generate(userID)
	require.NoError(t, err)
	return token
}

func issueExpiredToken(t *testing.T, userID int64) string {
	t.Helper()

	past := time.Now().Add(-2 * miniauth.TokenTTL)
	svc, err := miniauth.NewTokenService(gateSigningKey, miniauth.WithTokenClock(func() time.Time {
		return past
	}))
	require.NoError(t, err)
	token, err := svc.Generate(userID)
	require.NoError(t, err)
	return token
}

func setupGateApp(t *testing.T, overrides ...func(*Config)) *fiber.App {
	t.Helper()

	svc, err := miniauth.NewTokenService(gateSigningKey)
	require.NoError(t, err)

	cfg := Config{
		Verifier: svc,
		PublicRoutes: []string{
			"/",
			"/api/auth/telegram",
			"/api/categories(.*)",
		},
		GatedPrefixes: []string{
			"/",
			"/services(.*)",
			"/profile(.*)",
			"/api/auth(.*)",
			"/api/services(.*)",
			"/api/categories(.*)",
			"/whoami",
		},
		StaticPrefixes: []string{"/_next", "/favicon.ico"},
	}
	for _, override := range overrides {
		override(&cfg)
	}

	app := fiber.New()
	app.Use(New(cfg))
	handler := func(ctx *fiber.Ctx) error {
		return ctx.SendString("reached")
	}
	app.Get("/", handler)
	app.Get("/services", handler)
	app.Get("/services/123", handler)
	app.Get("/profile", handler)
	app.Get("/api/services", handler)
	app.Get("/api/categories", handler)
	app.Get("/api/auth/telegram", handler)
	app.Get("/_next/chunk.js", handler)
	app.Get("/unrelated", handler)
	app.Get("/whoami", func(ctx *fiber.Ctx) error {
		session := Session(ctx, "")
		if session == nil {
			return ctx.SendString("anonymous")
		}
		return ctx.SendString(session.String())
	})

	return app
}

func request(t *testing.T, app *fiber.App, path string, decorate ...func(*http.Request)) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, d := range decorate {
		d(req)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func withCookie(token string) func(*http.Request) {
	return func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: miniauth.CookieName, Value: token})
	}
}

func withBearer(token string) func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
}

func withNativeHeader() func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Set(HeaderMiniApp, "true")
	}
}

func TestGateDecisions(t *testing.T) {
	t.Run("public routes pass without credentials", func(t *testing.T) {
		app := setupGateApp(t)

		resp := request(t, app, "/")
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp = request(t, app, "/api/categories")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("static assets skip the gate entirely", func(t *testing.T) {
		app := setupGateApp(t)

		resp := request(t, app, "/_next/chunk.js")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("protected page requests redirect without a session", func(t *testing.T) {
		app := setupGateApp(t)

		resp := request(t, app, "/services")
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "/", resp.Header.Get(fiber.HeaderLocation))
	})

	t.Run("protected API requests get JSON 401, never a redirect", func(t *testing.T) {
		app := setupGateApp(t)

		resp := request(t, app, "/api/services")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Empty(t, resp.Header.Get(fiber.HeaderLocation))
		assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), "application/json")
	})

	t.Run("native page requests get 401 instead of a redirect", func(t *testing.T) {
		app := setupGateApp(t)

		resp := request(t, app, "/services", withNativeHeader())
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		resp = request(t, app, "/services", func(req *http.Request) {
			req.Header.Set(fiber.HeaderUserAgent, "Mozilla/5.0 TelegramWebApp")
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("the native signal alone is not a session", func(t *testing.T) {
		app := setupGateApp(t)

		resp := request(t, app, "/profile", withNativeHeader())
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("cookie credential passes protected routes", func(t *testing.T) {
		app := setupGateApp(t)
		token := issueToken(t, 42)

		resp := request(t, app, "/services", withCookie(token))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("bearer header works when no cookie is present", func(t *testing.T) {
		app := setupGateApp(t)
		token := issueToken(t, 42)

		resp := request(t, app, "/api/services", withBearer(token))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("cookie is preferred over the header", func(t *testing.T) {
		app := setupGateApp(t)
		good := issueToken(t, 42)

		resp := request(t, app, "/services", withCookie(good), withBearer("garbage"))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("expired credential degrades to no session", func(t *testing.T) {
		app := setupGateApp(t)
		expired := issueExpiredToken(t, 42)

		resp := request(t, app, "/services", withCookie(expired))
		assert.Equal(t, http.StatusFound, resp.StatusCode)

		resp = request(t, app, "/api/services", withCookie(expired))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("exchange endpoints stay reachable without a session", func(t *testing.T) {
		app := setupGateApp(t)

		resp := request(t, app, "/api/auth/telegram", withNativeHeader())
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("routes outside the gated prefixes pass ungated", func(t *testing.T) {
		app := setupGateApp(t, func(cfg *Config) {
			cfg.GatedPrefixes = []string{"/services(.*)", "/api/services(.*)"}
		})

		resp := request(t, app, "/unrelated")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("authenticated native responses carry the client tags", func(t *testing.T) {
		app := setupGateApp(t)
		token := issueToken(t, 42)

		resp := request(t, app, "/services", withCookie(token), withNativeHeader())
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, miniauth.ClientTypeMiniApp, resp.Header.Get(HeaderClientType))
		assert.Equal(t, "3.4.0", resp.Header.Get(HeaderSDKVersion))
	})

	t.Run("browser responses are not tagged", func(t *testing.T) {
		app := setupGateApp(t)
		token := issueToken(t, 42)

		resp := request(t, app, "/services", withCookie(token), func(req *http.Request) {
			req.Header.Set(fiber.HeaderUserAgent, "Mozilla/5.0 Chrome")
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, resp.Header.Get(HeaderClientType))
	})

	t.Run("session is available downstream", func(t *testing.T) {
		app := setupGateApp(t)
		token := issueToken(t, 42)

		resp := request(t, app, "/whoami", withCookie(token))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.NotEqual(t, "anonymous", string(raw))
	})
}

func TestGateMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	app := setupGateApp(t, func(cfg *Config) {
		cfg.Metrics = NewMetrics(registry)
	})

	request(t, app, "/services")
	request(t, app, "/_next/chunk.js")
	token := issueToken(t, 42)
	request(t, app, "/services", withCookie(token))

	families, err := registry.Gather()
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, family := range families {
		seen[family.GetName()] = true
	}
	assert.True(t, seen["gate_decisions_total"])
}

func TestGetDefaultConfig(t *testing.T) {
	t.Run("panics without a verifier", func(t *testing.T) {
		assert.Panics(t, func() {
			GetDefaultConfig()
		})
	})

	t.Run("fills defaults", func(t *testing.T) {
		svc, err := miniauth.NewTokenService(gateSigningKey)
		require.NoError(t, err)

		cfg := GetDefaultConfig(Config{Verifier: svc})
		assert.Equal(t, "session", cfg.ContextKey)
		assert.Equal(t, miniauth.CookieName, cfg.CookieName)
		assert.Equal(t, "Bearer", cfg.AuthScheme)
		assert.Equal(t, "/api/auth", cfg.ExchangePrefix)
		assert.Equal(t, "/", cfg.RedirectTarget)
	})
}

func TestRouteMatcher(t *testing.T) {
	cases := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/", "/", true},
		{"/", "/services", false},
		{"/services(.*)", "/services", true},
		{"/services(.*)", "/services/123", true},
		{"/services(.*)", "/serv", false},
		{"/api/categories(.*)", "/api/categories?page=2", true},
	}

	for _, tc := range cases {
		matchers := compileMatchers([]string{tc.pattern})
		assert.Equal(t, tc.want, matchAny(matchers, tc.path), "pattern %s path %s", tc.pattern, tc.path)
	}
}
