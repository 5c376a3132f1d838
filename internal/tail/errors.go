package tail

import "errors"

var (
	ErrUnknownChannel = errors.New("unknown channel")
	// ErrRotated means the tailed file shrank or was swapped for another
	// file. The store can no longer be extended in place and must be
	// rebuilt by a fresh ingestion.
	ErrRotated = errors.New("tailed file was truncated or replaced")
)
