package certificate

import "errors"

var (
	// ErrRenewalInProgress is returned when a sweep is already running.
	ErrRenewalInProgress = errors.New("certificate renewal already in progress")

	// ErrCertificateNotFound is returned when the renewed chain is missing on disk.
	ErrCertificateNotFound = errors.New("certificate not found")

	// ErrInvalidCertificate is returned when the chain cannot be parsed.
	ErrInvalidCertificate = errors.New("invalid certificate")

	// ErrRenewalFailed is returned when one or more certificates failed to renew.
	ErrRenewalFailed = errors.New("certificate renewal failed")
)
