package domain

import "errors"

var (
	// ErrDataValidation signals an input batch violating the structural contract
	// (missing primary-key column, unknown embedding-source column).
	ErrDataValidation = errors.New("data validation failed")
	// ErrTableNotFound signals an operation against a table that was never created.
	ErrTableNotFound = errors.New("table not found")
	// ErrDBOperation signals a backend storage failure.
	ErrDBOperation = errors.New("db operation failed")
	// ErrEmbeddingProvider signals an embedding provider failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrDimensionMismatch signals a vector whose length differs from the table dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
