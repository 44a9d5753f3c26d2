package client

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	miniauth "github.com/velora-app/miniapp-session"
)

// webAppDataParam is the fragment parameter carrying the percent-encoded
// identity blob.
const webAppDataParam = "tgWebAppData"

// ResolveIdentity extracts a candidate identity from the host environment.
// Ordered fallback chain, first success wins:
//
//  1. the structured user object the SDK exposed after init
//  2. the tgWebAppData blob in the launch URL fragment
//  3. the same blob from the legacy embedded-view payload
//
// Decode failures in one step are logged and resolution proceeds to the next
// step. Returns ErrIdentityUnavailable only when every step came up empty,
// and ErrNotEmbedded when the host is not Telegram at all.
func ResolveIdentity(env HostEnvironment, logger miniauth.Logger) (*miniauth.ExternalIdentity, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	if !env.IsTelegram() {
		return nil, ErrNotEmbedded
	}

	if user := env.InitDataUser(); user != nil {
		return user, nil
	}

	if fragment := env.LaunchFragment(); fragment != "" {
		identity, err := identityFromWebAppData(fragment)
		if err != nil {
			logger.Info("Identity fragment decode failed, trying next source: %v", err)
		} else if identity != nil {
			return identity, nil
		}
	}

	if payload := env.LegacyInitPayload(); payload != "" {
		identity, err := identityFromWebAppData(payload)
		if err != nil {
			logger.Info("Legacy init payload decode failed: %v", err)
		} else if identity != nil {
			return identity, nil
		}
	}

	return nil, ErrIdentityUnavailable
}

// identityFromWebAppData parses a launch-data blob. The blob is query-shaped
// and percent-encoded twice: once as part of the fragment, and the user=
// sub-field again as JSON.
func identityFromWebAppData(data string) (*miniauth.ExternalIdentity, error) {
	outer, err := url.ParseQuery(strings.TrimPrefix(data, "#"))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "launch data is not query-encoded")
	}

	blob := outer.Get(webAppDataParam)
	if blob == "" {
		// legacy payloads carry the fields at the top level
		blob = data
	}

	inner, err := url.ParseQuery(blob)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "identity blob is not query-encoded")
	}

	userJSON := inner.Get("user")
	if userJSON == "" {
		return nil, nil
	}

	identity := &miniauth.ExternalIdentity{}
	if err := json.Unmarshal([]byte(userJSON), identity); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "identity user field is not valid JSON")
	}

	if identity.TelegramID <= 0 || identity.FirstName == "" {
		return nil, goerrors.New("identity user field is missing id or first_name", goerrors.CategoryBadInput)
	}

	if raw := inner.Get("auth_date"); raw != "" {
		if authDate, err := strconv.ParseInt(raw, 10, 64); err == nil {
			identity.AuthDate = authDate
		}
	}

	return identity, nil
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
