package miniauth

import (
	"time"

	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole = string

const (
	// RoleUser is the default role assigned on first exchange
	RoleUser UserRole = "USER"
	// RoleMaster marks service providers with a linked MasterProfile
	RoleMaster UserRole = "MASTER"
	// RoleAdmin is the administrative role
	RoleAdmin UserRole = "ADMIN"
)

// User is the persistent account keyed by the external Telegram ID. Created
// on first successful exchange; display fields are refreshed on every
// subsequent exchange. Never deleted by this subsystem.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            int64          `bun:"id,pk,autoincrement" json:"id"`
	TelegramID    int64          `bun:"telegram_id,notnull,unique" json:"telegram_id"`
	Role          UserRole       `bun:"user_role,notnull" json:"role,omitempty"`
	FirstName     string         `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName      string         `bun:"last_name" json:"last_name,omitempty"`
	Username      string         `bun:"username" json:"username,omitempty"`
	Avatar        string         `bun:"avatar" json:"avatar,omitempty"`
	IsPremium     bool           `bun:"is_premium" json:"is_premium,omitempty"`
	CityID        *int64         `bun:"city_id" json:"city_id,omitempty"`
	City          *City          `bun:"rel:belongs-to,join:city_id=id" json:"city,omitempty"`
	DistrictID    *int64         `bun:"district_id" json:"district_id,omitempty"`
	District      *District      `bun:"rel:belongs-to,join:district_id=id" json:"district,omitempty"`
	MasterProfile *MasterProfile `bun:"rel:has-one,join:id=user_id" json:"master_profile,omitempty"`
	CreatedAt     *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time     `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// HasLocation reports whether the profile carries both location references;
// the client uses this to pick the post-auth landing route.
func (u *User) HasLocation() bool {
	return u != nil && u.CityID != nil && u.DistrictID != nil
}

// City is a location reference
type City struct {
	bun.BaseModel `bun:"table:cities,alias:cty"`
	ID            int64  `bun:"id,pk,autoincrement" json:"id"`
	Name          string `bun:"name,notnull" json:"name,omitempty"`
}

// District is a location reference scoped to a city
type District struct {
	bun.BaseModel `bun:"table:districts,alias:dst"`
	ID            int64  `bun:"id,pk,autoincrement" json:"id"`
	CityID        int64  `bun:"city_id,notnull" json:"city_id,omitempty"`
	Name          string `bun:"name,notnull" json:"name,omitempty"`
}

// MasterProfile is the optional provider profile linked to a user.
type MasterProfile struct {
	bun.BaseModel `bun:"table:master_profiles,alias:mpr"`
	ID            int64      `bun:"id,pk,autoincrement" json:"id"`
	UserID        int64      `bun:"user_id,notnull,unique" json:"user_id"`
	Bio           string     `bun:"bio" json:"bio,omitempty"`
	CityID        *int64     `bun:"city_id" json:"city_id,omitempty"`
	DistrictID    *int64     `bun:"district_id" json:"district_id,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}
