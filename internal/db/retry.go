package db

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Operation is a function that performs an action and returns an error if it fails.
type Operation func() error

const DefaultMaxRetries = 3

// Try executes an operation, retrying on duplicate key errors. Generated IDs
// can collide; the caller is expected to regenerate inside op.
func Try(op Operation) error {
	return WithRetries(op, DefaultMaxRetries, IsDuplicateKeyError)
}

// WithRetries attempts op up to 1+maxRetries times. Only errors matched by
// shouldRetry are retried; anything else is returned immediately.
func WithRetries(op Operation, maxRetries int, shouldRetry func(error) bool) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if attempt == maxRetries || !shouldRetry(err) {
			break
		}
		time.Sleep(time.Duration(50*(attempt+1)) * time.Millisecond)
	}
	return err
}

// IsDuplicateKeyError checks whether a MongoDB error is a duplicate key error (code 11000).
func IsDuplicateKeyError(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, e := range bwe.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	return false
}
