package models

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

type ScheduledPost struct {
	ID           int64          `db:"id" json:"id"`
	UserID       int64          `db:"user_id" json:"user_id"`
	TeamID       sql.NullInt64  `db:"team_id" json:"-"`
	AccountID    int64          `db:"account_id" json:"account_id"`
	Content      string         `db:"content" json:"content"`
	Thread       pq.StringArray `db:"thread" json:"thread"`
	MediaURLs    pq.StringArray `db:"media_urls" json:"media_urls"`
	ScheduledFor time.Time      `db:"scheduled_for" json:"scheduled_for"`
	Timezone     string         `db:"timezone" json:"timezone"`
	Status       string         `db:"status" json:"status"`
	ErrorMessage string         `db:"error_message" json:"error_message,omitempty"`
	Retryable    bool           `db:"retryable" json:"-"`
	CreditsSpent Credits        `db:"credits_spent" json:"credits_spent"`
	PostedAt     sql.NullTime   `db:"posted_at" json:"-"`
	ClaimedAt    sql.NullTime   `db:"claimed_at" json:"-"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// Items returns the main post followed by its thread replies.
func (p *ScheduledPost) Items() []string {
	items := make([]string, 0, 1+len(p.Thread))
	items = append(items, p.Content)
	items = append(items, p.Thread...)
	return items
}

// Scope is the credit scope any spend on this post was charged to.
func (p *ScheduledPost) Scope() CreditScope {
	if p.TeamID.Valid {
		return TeamScope(p.TeamID.Int64)
	}
	return PersonalScope(p.UserID)
}

const (
	PostStatusPending            = "pending"
	PostStatusProcessing         = "processing"
	PostStatusCompleted          = "completed"
	PostStatusPartiallyCompleted = "partially_completed"
	PostStatusFailed             = "failed"
	PostStatusExpired            = "expired"
)
