package workload

import (
	"errors"
	"fmt"
)

// ErrConversion marks a payload that passed validation but could not be
// converted to a BSON document when a worker first used it.
var ErrConversion = errors.New("query conversion failed")

// ConfigError reports a workload that cannot be built.
type ConfigError struct {
	Field string
	Index int // position of the offending query, -1 when not applicable
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("workload %s[%d]: %v", e.Field, e.Index, e.Err)
	}
	return fmt.Sprintf("workload %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configErr(field string, err error) *ConfigError {
	return &ConfigError{Field: field, Index: -1, Err: err}
}
