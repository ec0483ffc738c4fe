package repository

import "errors"

// Sentinels shared by every store implementation.
var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicate       = errors.New("duplicate unique field")
	ErrAlreadyModified = errors.New("record already modified")
)
