package session

import "github.com/google/uuid"

// Generator issues session ids.
type Generator struct{}

// NewGenerator returns a UUID-based generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Next returns a new random (v4) session id.
func (g *Generator) Next() string {
	return uuid.NewString()
}
