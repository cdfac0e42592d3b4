// Package uuid generates time-ordered identifiers for process runs.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates UUID v7 strings.
type Generator struct{}

// NewUUIDGenerator creates a new Generator.
func NewUUIDGenerator() *Generator {
	return &Generator{}
}

// NewID returns a UUID7 string. Run IDs sort by start time, which keeps the
// log lines of one process together.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}
