package repository

import "design-assistant-backend/internal/auth/domain"

// MondayLinkRepository manages account/token links. Find methods return
// (nil, nil) when no row matches.
type MondayLinkRepository interface {
	Upsert(link *domain.MondayLink) error
	FindByAccount(accountID string) (*domain.MondayLink, error)
}

// HandoffCodeRepository manages one-time handoff codes.
type HandoffCodeRepository interface {
	Create(code *domain.HandoffCode) error

	// Consume atomically marks an unused code as used and returns it;
	// returns (nil, nil) when the code is unknown or already used.
	Consume(code string) (*domain.HandoffCode, error)
}
