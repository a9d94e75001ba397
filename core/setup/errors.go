package setup

import "errors"

var (
	ErrAdminCredentialsRequired = errors.New("setup: initial admin email and password are required")
	ErrWriteCredentials         = errors.New("setup: failed to write dns credentials")
)
