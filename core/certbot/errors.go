package certbot

import (
	"errors"
	"fmt"
)

const (
	SomePluginsFailedMessage = "Some plugins failed to install. Please check the logs above"
	SomePluginsFailedCode    = 1
)

var (
	// ErrPluginNotFound matches every NotFoundError.
	ErrPluginNotFound = errors.New("certbot plugin not found")

	// ErrSomePluginsFailed matches the aggregate error returned by InstallAll.
	ErrSomePluginsFailed = errors.New(SomePluginsFailedMessage)

	// ErrInvalidRegistry is returned when the plugin registry cannot be decoded.
	ErrInvalidRegistry = errors.New("invalid certbot plugin registry")
)

// NotFoundError reports a plugin key that is absent from the registry.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", ErrPluginNotFound, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrPluginNotFound
}

// CommandError is a failure with a process-style status code.
type CommandError struct {
	Message string
	Code    int

	aggregate bool
}

func (e *CommandError) Error() string {
	return e.Message
}

func (e *CommandError) Is(target error) bool {
	return e.aggregate && target == ErrSomePluginsFailed
}

// NewSomePluginsFailedError returns a fresh aggregate batch failure.
func NewSomePluginsFailedError() *CommandError {
	return &CommandError{Message: SomePluginsFailedMessage, Code: SomePluginsFailedCode, aggregate: true}
}
