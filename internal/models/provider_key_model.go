package models

import "time"

// ProviderKey is a caller-supplied generation credential, stored encrypted.
type ProviderKey struct {
	ID           int64     `db:"id" json:"id"`
	UserID       int64     `db:"user_id" json:"user_id"`
	Provider     string    `db:"provider" json:"provider"`
	EncryptedKey string    `db:"encrypted_key" json:"-"`
	Hint         string    `db:"hint" json:"hint"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
