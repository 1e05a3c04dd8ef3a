package domain

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrTripNotFound = errors.New("trip not found")
)
