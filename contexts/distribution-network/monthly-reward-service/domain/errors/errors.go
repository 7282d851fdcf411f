package errors

import "errors"

var (
	ErrInvalidInput       = errors.New("monthly reward input is invalid")
	ErrStatementNotFound  = errors.New("monthly statement not found")
	ErrStatementExists    = errors.New("monthly statement already exists for month")
	ErrUnknownComputeMode = errors.New("compute mode is not recognized")
	ErrPluginNotFound     = errors.New("reward plugin identifier is not registered")
)
