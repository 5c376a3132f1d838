package channel

import "errors"

var (
	ErrFeedClosed    = errors.New("feed is closed")
	ErrFeedNotOpen   = errors.New("feed has no open tail handle")
	ErrFeedTruncated = errors.New("tailed file shrank below the read cursor")
	ErrFeedReplaced  = errors.New("tailed file was replaced")
	ErrRegistryDone  = errors.New("registry is closed")
)
