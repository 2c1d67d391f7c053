package mocks

import (
	"fmt"

	"github.com/mcoot/tabletop-bank/internal/dependencies/idgen"
	"github.com/mcoot/tabletop-bank/internal/model"
)

// MockIDGenerator is a mock implementation of idgen.Generator for testing
type MockIDGenerator struct {
	// Results is a queue of ids to return from NewPlayerID
	Results []model.PlayerID
	index   int
	issued  int
}

// Ensure MockIDGenerator implements Generator
var _ idgen.Generator = (*MockIDGenerator)(nil)

// NewMockIDGenerator creates a new MockIDGenerator
func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

// NewPlayerID returns the next queued id, or a numbered placeholder once the queue is empty
func (g *MockIDGenerator) NewPlayerID() model.PlayerID {
	g.issued++
	if g.index >= len(g.Results) {
		return model.PlayerID(fmt.Sprintf("player-%d", g.issued))
	}
	id := g.Results[g.index]
	g.index++
	return id
}

// Queue adds ids to the result queue
func (g *MockIDGenerator) Queue(ids ...model.PlayerID) {
	g.Results = append(g.Results, ids...)
}

// Issued returns how many ids have been handed out
func (g *MockIDGenerator) Issued() int {
	return g.issued
}
