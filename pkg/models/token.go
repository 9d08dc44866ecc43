package models

import (
	"time"

	"github.com/google/uuid"
)

// AccessToken is a personal access token for API and CLI access, as an
// alternative to a Firebase ID token. Raw tokens are shown once at creation;
// only the bcrypt hash is stored.
type AccessToken struct {
	ID          uuid.UUID  `db:"id"           json:"id"`
	OwnerID     string     `db:"owner_id"     json:"owner_id"`
	Name        string     `db:"name"         json:"name"`
	TokenHash   string     `db:"token_hash"   json:"-"`
	TokenPrefix string     `db:"token_prefix" json:"token_prefix"`
	LastUsedAt  *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	RevokedAt   *time.Time `db:"revoked_at"   json:"-"`
	CreatedAt   time.Time  `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"   json:"updated_at"`
}
