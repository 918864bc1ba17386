package errors

import (
	"fmt"
)

var (
	ErrNotFound        = fmt.Errorf("not found")
	ErrInvalidSnapshot = fmt.Errorf("invalid snapshot")
	ErrInvalidInput    = fmt.Errorf("invalid input")
)
