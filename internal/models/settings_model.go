package models

import "time"

type Settings struct {
	UserID          int64     `db:"user_id" json:"user_id"`
	LongPostEnabled bool      `db:"long_post_enabled" json:"long_post_enabled"`
	PreferOwnKeys   bool      `db:"prefer_own_keys" json:"prefer_own_keys"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}
