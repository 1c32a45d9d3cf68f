package ids

import "github.com/google/uuid"

//go:generate mockgen -package=mocks -destination=mocks/mock_ids.go github.com/kiliankoe/rajamantri/internal/common/ids Generator

// Generator hands out opaque identifiers for rooms and players.
type Generator interface {
	NewID() string
}

type UUID struct{}

func (UUID) NewID() string {
	return uuid.NewString()
}
