package miniauth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// ExchangeResult is what the exchange hands back to the transport layer: the
// fully loaded user record, a fresh credential, and whether the user was
// created by this call.
type ExchangeResult struct {
	User      *User
	Token     string
	IsNewUser bool
}

// Exchanger upserts a user from an ExternalIdentity and issues a session
// credential. Idempotent per TelegramID: repeated exchanges refresh display
// fields and report IsNewUser=false.
type Exchanger struct {
	repo    RepositoryManager
	tokens  TokenService
	logger  Logger
	metrics *ExchangeMetrics
}

var _ Exchange = (*Exchanger)(nil)

// ExchangerOption customizes exchanger construction.
type ExchangerOption func(*Exchanger)

// WithExchangerLogger overrides the logger.
func WithExchangerLogger(logger Logger) ExchangerOption {
	return func(e *Exchanger) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithExchangerMetrics attaches result counters.
func WithExchangerMetrics(metrics *ExchangeMetrics) ExchangerOption {
	return func(e *Exchanger) {
		e.metrics = metrics
	}
}

// NewExchanger returns the session exchange service.
func NewExchanger(repo RepositoryManager, tokens TokenService, opts ...ExchangerOption) *Exchanger {
	e := &Exchanger{
		repo:   repo,
		tokens: tokens,
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Exchange runs the upsert-and-issue operation in a single transaction.
// Uniqueness on telegram_id is the sole concurrency control; concurrent
// first exchanges for the same identity collapse into one created row.
func (e *Exchanger) Exchange(ctx context.Context, identity ExternalIdentity) (*ExchangeResult, error) {
	if identity.TelegramID <= 0 || identity.FirstName == "" {
		e.metrics.observe(ExchangeOutcomeRejected)
		return nil, ErrIdentityInvalid
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var user *User
	isNewUser := false

	err := e.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := e.repo.Users().GetByTelegramIDTx(ctx, tx, identity.TelegramID)
		if err != nil && !IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not look up user")
		}

		if existing != nil {
			applyDisplayFields(existing, identity)
			if user, err = e.repo.Users().UpdateTx(ctx, tx, existing); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "could not update user")
			}
			e.logger.Debug("Exchange updated existing user %d", user.ID)
			return nil
		}

		record := &User{
			TelegramID: identity.TelegramID,
			Role:       RoleUser,
			FirstName:  identity.FirstName,
			LastName:   identity.LastName,
			Username:   identity.Username,
			Avatar:     identity.PhotoURL,
			IsPremium:  identity.IsPremium,
		}

		if user, err = e.repo.Users().CreateTx(ctx, tx, record); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		isNewUser = true
		e.logger.Debug("Exchange created new user %d", user.ID)
		return nil
	})

	if err != nil {
		e.metrics.observe(ExchangeOutcomeFailed)
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, ErrExchangeFailed.Category, ErrExchangeFailed.Message).
			WithTextCode(textCodeExchangeFailed)
	}

	// reload with relations so the caller gets the same shape on both the
	// create and update branches
	loaded, err := e.repo.Users().GetByID(ctx, user.ID, WithUserRelations())
	if err != nil {
		e.metrics.observe(ExchangeOutcomeFailed)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not load user relations")
	}

	token, err := e.tokens.Generate(loaded.ID)
	if err != nil {
		e.metrics.observe(ExchangeOutcomeFailed)
		return nil, err
	}

	if isNewUser {
		e.metrics.observe(ExchangeOutcomeCreated)
	} else {
		e.metrics.observe(ExchangeOutcomeUpdated)
	}

	return &ExchangeResult{
		User:      loaded,
		Token:     token,
		IsNewUser: isNewUser,
	}, nil
}

// applyDisplayFields refreshes mutable display attributes, keeping the stored
// value when the incoming identity omits one.
func applyDisplayFields(user *User, identity ExternalIdentity) {
	user.FirstName = identity.FirstName

	if identity.Username != "" {
		user.Username = identity.Username
	}
	if identity.LastName != "" {
		user.LastName = identity.LastName
	}
	if identity.PhotoURL != "" {
		user.Avatar = identity.PhotoURL
	}
	if identity.IsPremium {
		user.IsPremium = true
	}
}
