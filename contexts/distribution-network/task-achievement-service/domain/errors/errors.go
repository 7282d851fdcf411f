package errors

import "errors"

var (
	ErrInvalidInput       = errors.New("task achievement input is invalid")
	ErrTaskNotFound       = errors.New("task not found")
	ErrTaskInactive       = errors.New("task is not active")
	ErrAcceptanceNotFound = errors.New("acceptance not found")
	ErrAlreadyAccepted    = errors.New("task already accepted by distributor")
	ErrPluginNotFound     = errors.New("task type identifier is not registered")
)
