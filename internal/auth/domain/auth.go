package domain

import "time"

// MondayLink ties a monday.com account to its OAuth access token. The token
// is encrypted at rest; only the auth usecase ever sees plaintext.
type MondayLink struct {
	AccountID            string `json:"account_id" gorm:"primaryKey"`
	UserID               string `json:"user_id" gorm:"index"`
	EncryptedAccessToken string `json:"-" gorm:"type:text;not null"`
	Scopes               string `json:"scopes,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// HandoffCode is a one-time short-lived code minted inside the monday app
// iframe and redeemed by the assistant frontend for an app session.
type HandoffCode struct {
	Code            string     `json:"code" gorm:"primaryKey"`
	ExternalTaskKey string     `json:"external_task_key" gorm:"index;not null"`
	AccountID       string     `json:"account_id" gorm:"not null"`
	BoardID         string     `json:"board_id"`
	ItemID          string     `json:"item_id" gorm:"not null"`
	ItemName        string     `json:"item_name"`
	ExpiresAt       time.Time  `json:"expires_at" gorm:"not null"`
	UsedAt          *time.Time `json:"used_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Expired reports whether the code can no longer be redeemed.
func (h *HandoffCode) Expired(now time.Time) bool {
	return now.After(h.ExpiresAt)
}
