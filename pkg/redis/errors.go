package redis

import "errors"

var (
	ErrInvalidConnectionURL = errors.New("failed to parse redis connection string")
	ErrFailedToConnect      = errors.New("redis did not become ready within the given time period")
	ErrHealthcheckFailed    = errors.New("redis healthcheck failed")
)
