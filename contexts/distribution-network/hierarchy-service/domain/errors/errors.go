package errors

import "errors"

var (
	ErrInvalidInput        = errors.New("hierarchy input is invalid")
	ErrDistributorNotFound = errors.New("distributor not found")
	ErrDistributorExists   = errors.New("distributor already exists for user")
	ErrHierarchyCycle      = errors.New("hierarchy integrity violated: upstream chain contains a cycle")
	ErrAlreadyLeader       = errors.New("distributor already holds an active leader role")
)
