package domain

import "errors"

var (
	ErrNotFound        = errors.New("order not found")
	ErrProductNotFound = errors.New("product not found")
)
