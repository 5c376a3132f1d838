package config

import "errors"

var (
	ErrPathRequired    = errors.New("log directory path is required")
	ErrNotDirectory    = errors.New("log path is not a directory")
	ErrSampleThreshold = errors.New("sample threshold must be positive")
	ErrPort            = errors.New("port must be between 1 and 65535")
)
