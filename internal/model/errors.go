package model

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrFetch        = errors.New("fetch error")
	ErrParse        = errors.New("parse error")
	ErrWrite        = errors.New("write error")

	ErrSymbolNotFound = fmt.Errorf("%w: symbol not found in response", ErrParse)
)
