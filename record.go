package newshound

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record is one archived pipeline result: an accepted article plus where and
// how it was obtained.
type Record struct {
	ID        uuid.UUID  `json:"id"`
	SourceID  *uuid.UUID `json:"source_id,omitempty"`
	FetchedAt time.Time  `json:"fetched_at"`
	Method    string     `json:"method,omitempty"`
	Article   Article    `json:"article"`
}

// ReadError describes a failure to read a single archived record.
type ReadError struct {
	Filename string
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Filename, e.Err)
}
