package repository

import "github.com/hazardwatch/hazardwatch/internal/errors"

// Sentinel errors for repository operations.
var (
	// ErrHazardNotFound indicates the requested hazard does not exist.
	ErrHazardNotFound = errors.NewStd("hazard not found")

	// ErrDetailNotFound indicates the hazard has no classification sub-record.
	ErrDetailNotFound = errors.NewStd("hazard detail not found")

	// ErrLocationNotFound indicates the requested location does not exist.
	ErrLocationNotFound = errors.NewStd("location not found")

	// ErrImpactNotFound indicates the requested impact does not exist.
	ErrImpactNotFound = errors.NewStd("impact not found")

	// ErrAttachmentNotFound indicates the requested attachment does not exist.
	ErrAttachmentNotFound = errors.NewStd("attachment not found")

	// ErrActivityNotFound indicates the subject has no attribution record.
	ErrActivityNotFound = errors.NewStd("activity not found")

	// ErrInvalidInput indicates invalid input parameters.
	ErrInvalidInput = errors.NewStd("invalid input")
)
