package model

import "time"

// -------------------- USER --------------------
type User struct {
	UserBucket     int       `json:"-" db:"user_bucket"`
	UserID         string    `json:"user_id" db:"user_id"` // UUID
	Username       string    `json:"username" db:"username"`
	MobileHash     string    `json:"-" db:"mobile_hash"` // lookup key, SHA-256
	MobileEnc      string    `json:"-" db:"mobile_encrypted"`
	MobileKeyID    string    `json:"-" db:"mobile_key_id"`
	PasswordHash   string    `json:"-" db:"password_hash"` // argon2id
	Bio            string    `json:"bio" db:"bio"`
	AvatarURL      string    `json:"avatar_url" db:"avatar_url"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	LastLoginAt    time.Time `json:"last_login_at" db:"last_login_at"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// -------------------- CONTENT --------------------
type ArticleCategory struct {
	CategoryID string    `json:"category_id" db:"category_id"`
	Title      string    `json:"title" db:"title"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type Article struct {
	ArticleID     string    `json:"article_id" db:"article_id"` // UUID
	AuthorID      string    `json:"author_id" db:"author_id"`
	AuthorName    string    `json:"author_name" db:"author_name"`
	CategoryID    string    `json:"category_id" db:"category_id"`
	Title         string    `json:"title" db:"title"`
	Tags          string    `json:"tags" db:"tags"`
	Summary       string    `json:"summary" db:"summary"`
	Content       string    `json:"content" db:"content"`
	CoverURL      string    `json:"cover_url" db:"cover_url"`
	TotalViews    int64     `json:"total_views" db:"total_views"`
	CommentCounts int64     `json:"comment_counts" db:"comment_counts"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

type Comment struct {
	CommentID  string    `json:"comment_id" db:"comment_id"` // timeuuid
	ArticleID  string    `json:"article_id" db:"article_id"`
	UserID     string    `json:"user_id" db:"user_id"`
	Username   string    `json:"username" db:"username"`
	Content    string    `json:"content" db:"content"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// -------------------- SESSION --------------------
type Session struct {
	SessionID  string    `json:"session_id"`
	UserID     string    `json:"user_id"`
	UserBucket int       `json:"user_bucket"`
	Username   string    `json:"username"`
	Remembered bool      `json:"remembered"`
	CreatedAt  time.Time `json:"created_at"`
}

// -------------------- ANALYTICS EVENTS --------------------

// VerificationEvent is the audit record emitted for every challenge
// issuance/verification attempt. Subject values are hashed identifiers,
// never raw phone numbers.
type VerificationEvent struct {
	EventID     string    `json:"event_id"`
	Kind        string    `json:"kind"`    // image_issue | sms_issue | sms_verify
	Subject     string    `json:"subject"` // hashed session token or phone
	Outcome     string    `json:"outcome"` // ok | expired | mismatch | throttled | error
	EventBucket int       `json:"event_bucket"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type ArticleViewEvent struct {
	EventID    string    `json:"event_id"`
	ArticleID  string    `json:"article_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
