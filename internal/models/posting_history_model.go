package models

import "time"

// PostingHistory is one successfully posted item: the main post or a single
// thread reply.
type PostingHistory struct {
	ID              int64     `db:"id" json:"id"`
	UserID          int64     `db:"user_id" json:"user_id"`
	ScheduledPostID int64     `db:"scheduled_post_id" json:"scheduled_post_id"`
	AccountID       int64     `db:"account_id" json:"account_id"`
	Position        int       `db:"position" json:"position"`
	ExternalID      string    `db:"external_id" json:"external_id"`
	Content         string    `db:"content" json:"content"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}
