package ipranges

import "errors"

var (
	ErrUnexpectedStatus = errors.New("unexpected response status")
	ErrInvalidPayload   = errors.New("invalid ip ranges payload")
	ErrNoRanges         = errors.New("no ip ranges fetched")
	ErrWriteConfig      = errors.New("failed to write ip ranges config")
	ErrBodyTooLarge     = errors.New("ip ranges response too large")
)
