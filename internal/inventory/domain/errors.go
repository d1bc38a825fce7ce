package domain

import "errors"

var (
	ErrOutOfStock = errors.New("no available unit for product")
	ErrNotFound   = errors.New("inventory unit not found")
)
