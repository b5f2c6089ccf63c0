// Package domain defines the persistence models shared by the repository,
// service and HTTP layers. The types are mapped with GORM and work on both
// SQLite and Postgres.
package domain

import (
	"time"
)

// Roles recognised by the authorization middleware.
const (
	RoleUser      = "user"
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
)

// User is an account. Password, one-time code and reset state never leave
// the service in JSON.
//
// Fields:
//   - Email: unique, stored case-folded.
//   - Password: bcrypt hash; empty for social-only accounts.
//   - OneTimeCode / OTPExpiresAt: the pending OTP, cleared once consumed.
//   - IsResetPassword: set after a verified forgot-password code, cleared by a reset.
//   - AppID: identifier from the social login provider.
type User struct {
	ID              string     `json:"id"        gorm:"type:char(36);primaryKey"`
	Name            string     `json:"name"      gorm:"type:varchar(120);not null"`
	Email           string     `json:"email"     gorm:"type:varchar(255);not null;uniqueIndex:ux_users_email"`
	Password        string     `json:"-"         gorm:"type:varchar(255)"`
	Role            string     `json:"role"      gorm:"type:varchar(16);not null;default:'user';check:chk_users_role,role IN ('user','admin','moderator')"`
	Verified        bool       `json:"verified"  gorm:"not null;default:false"`
	Phone           string     `json:"phone"     gorm:"type:varchar(32)"`
	Address         string     `json:"address"   gorm:"type:varchar(255)"`
	PostCode        string     `json:"post_code" gorm:"type:varchar(16)"`
	Country         string     `json:"country"   gorm:"type:varchar(64)"`
	Image           string     `json:"image"     gorm:"type:varchar(512)"`
	AppID           string     `json:"-"         gorm:"column:app_id;type:varchar(255);index"`
	OneTimeCode     string     `json:"-"         gorm:"type:varchar(16)"`
	OTPExpiresAt    *time.Time `json:"-"         gorm:"column:otp_expires_at"`
	IsResetPassword bool       `json:"-"         gorm:"not null;default:false"`
	CreatedAt       time.Time  `json:"created_at" gorm:"index"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Room groups the turns of one conversation. Its name is the question that
// opened it. Rooms are never renamed or deleted except with their owner.
type Room struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:char(36);not null;index:idx_user_rooms,priority:1"`
	Name      string    `json:"name"       gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_user_rooms,priority:2"`
}

// TableName returns the database table name for Room.
func (Room) TableName() string { return "rooms" }

// Turn is one question and its answer inside a room. IDs are UUIDv7 so that
// ordering by (created_at, id) is insertion order even for equal timestamps.
type Turn struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	RoomID    string    `json:"room_id"    gorm:"type:char(36);not null;index:idx_room_turns,priority:1"`
	UserID    string    `json:"user_id"    gorm:"type:char(36);not null;index"`
	Question  string    `json:"question"   gorm:"type:text;not null"`
	Answer    *string   `json:"answer"     gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_room_turns,priority:2"`

	// Room is the owning conversation; turns go with it.
	Room Room `json:"-" gorm:"foreignKey:RoomID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Turn.
func (Turn) TableName() string { return "turns" }

// AnswerText returns the answer or "" when it was never stored.
func (t Turn) AnswerText() string {
	if t.Answer == nil {
		return ""
	}
	return *t.Answer
}

// Client is a catalog entry. Deletion only flips IsDeleted, and a deleted
// client no longer accepts updates.
type Client struct {
	ID          string    `json:"id"          gorm:"type:char(36);primaryKey"`
	Name        string    `json:"name"        gorm:"type:varchar(255);not null;index"`
	Description string    `json:"description" gorm:"type:text"`
	Code        string    `json:"code"        gorm:"type:varchar(255);not null"`
	IsDeleted   bool      `json:"is_deleted"  gorm:"not null;default:false;index"`
	Image       string    `json:"image"       gorm:"type:varchar(512)"`
	CreatedAt   time.Time `json:"created_at"  gorm:"index"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Client.
func (Client) TableName() string { return "clients" }

// ResetToken authorizes exactly one password reset. Only the SHA-256 of the
// token handed to the user is stored.
type ResetToken struct {
	ID        string     `gorm:"type:char(36);primaryKey"`
	UserID    string     `gorm:"type:char(36);not null;index"`
	TokenHash string     `gorm:"type:char(64);not null;uniqueIndex:ux_reset_token_hash"`
	ExpiresAt time.Time  `gorm:"not null"`
	UsedAt    *time.Time
	CreatedAt time.Time
}

// TableName returns the database table name for ResetToken.
func (ResetToken) TableName() string { return "reset_tokens" }
