package entity

import "errors"

var (
	// ErrTokenNotFound is returned when the price API has no usable pair for an address.
	ErrTokenNotFound = errors.New("token not found")
	// ErrInvalidInput marks user input rejected before any fetch.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoGroupsAvailable is returned when assigning a token while no group exists.
	ErrNoGroupsAvailable = errors.New("no groups available, create a group first")
	// ErrGroupNotFound is returned by lookups of an unknown group id.
	ErrGroupNotFound = errors.New("group not found")
	// ErrTokenNotTracked is returned by lookups of an address not in the portfolio.
	ErrTokenNotTracked = errors.New("token not tracked")
)
