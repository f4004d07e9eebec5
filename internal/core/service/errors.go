package service

import (
	"errors"
	"fmt"

	"github.com/mohammed-shakir/streetview-viewport/internal/core/model"
)

// ErrNotFound is wrapped by failures of by-id lookups that returned 404.
var ErrNotFound = errors.New("not found")

// ServiceFailure is the single error type returned by Source calls. Network,
// status and decode failures are not distinguished.
type ServiceFailure struct {
	DataType model.DataType
	Op       string
	Err      error
}

func (e *ServiceFailure) Error() string {
	return fmt.Sprintf("%s service %s: %v", e.DataType.Label(), e.Op, e.Err)
}

func (e *ServiceFailure) Unwrap() error { return e.Err }

func failure(dt model.DataType, op string, err error) error {
	return &ServiceFailure{DataType: dt, Op: op, Err: err}
}

// FailedType extracts the data type from a ServiceFailure anywhere in err's chain.
func FailedType(err error) (model.DataType, bool) {
	var sf *ServiceFailure
	if errors.As(err, &sf) {
		return sf.DataType, true
	}
	return "", false
}
