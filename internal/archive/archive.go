// Package archive writes daily summaries to durable object storage.
package archive

import (
	"context"
	"fmt"
)

// Sink stores a whole object under key, replacing any existing object.
type Sink interface {
	Put(ctx context.Context, key string, body []byte) error
}

// ArchiveWriteError reports that the sink refused or never received an
// object.
type ArchiveWriteError struct {
	Key string
	Err error
}

func (e *ArchiveWriteError) Error() string {
	return fmt.Sprintf("failed to archive %s: %v", e.Key, e.Err)
}

func (e *ArchiveWriteError) Unwrap() error { return e.Err }
