package miniauth

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// SelectCriteria customizes user lookups, e.g. relation loading.
type SelectCriteria func(*bun.SelectQuery) *bun.SelectQuery

// WithUserRelations loads the location references and the linked provider
// profile, the shape the exchange returns to the client.
func WithUserRelations() SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Relation("City").Relation("District").Relation("MasterProfile")
	}
}

// Users is the persistence surface the exchange depends on.
type Users interface {
	GetByID(ctx context.Context, id int64, criteria ...SelectCriteria) (*User, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id int64, criteria ...SelectCriteria) (*User, error)
	GetByTelegramID(ctx context.Context, telegramID int64, criteria ...SelectCriteria) (*User, error)
	GetByTelegramIDTx(ctx context.Context, tx bun.IDB, telegramID int64, criteria ...SelectCriteria) (*User, error)
	Create(ctx context.Context, record *User) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error)
	Update(ctx context.Context, record *User) (*User, error)
	UpdateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error)
}

type users struct {
	db *bun.DB
}

var _ Users = (*users)(nil)

// NewUsersRepository returns the bun-backed Users repository.
func NewUsersRepository(db *bun.DB) Users {
	return &users{db: db}
}

// IsRecordNotFound reports whether an error is a missing-row lookup result.
func IsRecordNotFound(err error) bool {
	return goerrors.Is(err, sql.ErrNoRows)
}

func (a *users) GetByID(ctx context.Context, id int64, criteria ...SelectCriteria) (*User, error) {
	return a.GetByIDTx(ctx, a.db, id, criteria...)
}

func (a *users) GetByIDTx(ctx context.Context, tx bun.IDB, id int64, criteria ...SelectCriteria) (*User, error) {
	return a.getBy(ctx, tx, "id", id, criteria...)
}

func (a *users) GetByTelegramID(ctx context.Context, telegramID int64, criteria ...SelectCriteria) (*User, error) {
	return a.GetByTelegramIDTx(ctx, a.db, telegramID, criteria...)
}

func (a *users) GetByTelegramIDTx(ctx context.Context, tx bun.IDB, telegramID int64, criteria ...SelectCriteria) (*User, error) {
	return a.getBy(ctx, tx, "telegram_id", telegramID, criteria...)
}

func (a *users) getBy(ctx context.Context, tx bun.IDB, column string, value int64, criteria ...SelectCriteria) (*User, error) {
	record := &User{}
	q := tx.NewSelect().Model(record)

	for _, c := range criteria {
		q = c(q)
	}

	err := q.
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return record, nil
}

func (a *users) Create(ctx context.Context, record *User) (*User, error) {
	return a.CreateTx(ctx, a.db, record)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error) {
	prepareUserDefaults(record)

	_, err := tx.NewInsert().Model(record).Exec(ctx)
	if err != nil {
		return nil, err
	}

	return record, nil
}

func (a *users) Update(ctx context.Context, record *User) (*User, error) {
	return a.UpdateTx(ctx, a.db, record)
}

// UpdateTx persists mutable display fields only; role, location, and
// relations are owned by other flows.
func (a *users) UpdateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error) {
	now := time.Now()
	record.UpdatedAt = &now

	_, err := tx.NewUpdate().
		Model(record).
		Column("username", "first_name", "last_name", "avatar", "is_premium", "updated_at").
		WherePK().
		Exec(ctx)

	if err != nil {
		return nil, err
	}

	return record, nil
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RoleUser
	}
}
