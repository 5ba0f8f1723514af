package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	RunID    ID
	CorpusID ID
)

// NewRunID creates a time-ordered campaign run identifier
func NewRunID() RunID { return RunID(NewID()) }

// NewCorpusID creates a time-ordered corpus identifier
func NewCorpusID() CorpusID { return CorpusID(NewID()) }

// String conversions for domain IDs
func (id RunID) String() string    { return ID(id).String() }
func (id CorpusID) String() string { return ID(id).String() }

// ParseRunID parses a string into RunID
func ParseRunID(s string) (RunID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("run ID cannot be empty")
	}
	return RunID(s), nil
}

// ParseCorpusID parses a string into CorpusID
func ParseCorpusID(s string) (CorpusID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("corpus ID cannot be empty")
	}
	return CorpusID(s), nil
}
