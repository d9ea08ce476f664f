// Package domain holds the error taxonomy shared by every vidchat layer.
package domain

import "errors"

// Domain errors.
var (
	// ErrNotFound indicates a requested resource was not found.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates malformed input or configuration.
	ErrValidation = errors.New("validation error")

	// ErrConflict indicates a conflict with existing data.
	ErrConflict = errors.New("conflict")

	// ErrIngestion indicates an upstream transcript or metadata fetch failed.
	ErrIngestion = errors.New("ingestion failed")

	// ErrClassification indicates the intent classifier could not run.
	ErrClassification = errors.New("classification failed")

	// ErrGeneration indicates the model failed while producing a response.
	ErrGeneration = errors.New("generation failed")
)
