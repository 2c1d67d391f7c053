package idgen

import (
	"github.com/google/uuid"

	"github.com/mcoot/tabletop-bank/internal/model"
)

// Generator produces player identifiers and can be mocked for testing
type Generator interface {
	NewPlayerID() model.PlayerID
}

// UUIDGenerator issues random (version 4) UUIDs
type UUIDGenerator struct{}

// New creates a new UUIDGenerator
func New() *UUIDGenerator {
	return &UUIDGenerator{}
}

// NewPlayerID returns a fresh random UUID
func (g *UUIDGenerator) NewPlayerID() model.PlayerID {
	return model.PlayerID(uuid.NewString())
}
