package models

import (
	"database/sql"
	"time"
)

type Subscription struct {
	ID                  int64        `db:"id" json:"id"`
	UserID              int64        `db:"user_id" json:"user_id"`
	Plan                string       `db:"plan" json:"plan"`
	Status              string       `db:"status" json:"status"`
	SubscriptionEndDate sql.NullTime `db:"subscription_end_date" json:"-"`
}

// Active reports whether the subscription entitles its plan at now. A
// missing end date means it does not lapse.
func (s *Subscription) Active(now time.Time) bool {
	if s == nil || s.Status != SubscriptionStatusActive {
		return false
	}
	return !s.SubscriptionEndDate.Valid || s.SubscriptionEndDate.Time.After(now)
}

const SubscriptionStatusActive = "active"
