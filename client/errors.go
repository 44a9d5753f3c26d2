package client

import (
	goerrors "github.com/goliatone/go-errors"
)

// ErrNotEmbedded is terminal: the application is not running inside the
// expected embedding client and must be reopened there.
var ErrNotEmbedded = goerrors.New("application must be opened inside Telegram", goerrors.CategoryAuth).
	WithTextCode("NOT_EMBEDDED").
	WithCode(goerrors.CodeUnauthorized)

// ErrIdentityUnavailable is soft: no fallback path produced an identity yet.
// Resolution and host readiness may race, so callers wait rather than fail.
var ErrIdentityUnavailable = goerrors.New("no telegram identity available", goerrors.CategoryAuth).
	WithTextCode("IDENTITY_UNAVAILABLE").
	WithCode(goerrors.CodeUnauthorized)

// ErrExchangeRejected maps the server's 400 schema-violation response.
var ErrExchangeRejected = goerrors.New("exchange rejected identity payload", goerrors.CategoryValidation).
	WithTextCode("EXCHANGE_REJECTED").
	WithCode(goerrors.CodeBadRequest)

// ErrExchangeUnavailable covers transport failures and 5xx responses; the
// orchestrator treats it as retryable.
var ErrExchangeUnavailable = goerrors.New("exchange request failed", goerrors.CategoryOperation).
	WithTextCode("EXCHANGE_UNAVAILABLE").
	WithCode(goerrors.CodeInternal)
