package errors

import "errors"

var (
	ErrInvalidInput       = errors.New("commission input is invalid")
	ErrTargetNotFound     = errors.New("commission target not found")
	ErrEventNotFound      = errors.New("distribution event not found")
	ErrCommissionNotFound = errors.New("commission not found")
	ErrPluginNotFound     = errors.New("plugin identifier is not registered")
	ErrUnknownComputeMode = errors.New("unknown commission compute mode")
	ErrPassExists         = errors.New("distribution pass already recorded for order")
)
