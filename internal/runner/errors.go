package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/torosent/mongo-bench/internal/workload"
)

// ErrInterrupted is returned by Run when its context is canceled before
// every worker finished.
var ErrInterrupted = errors.New("run interrupted")

// Error classes recorded as query_error.<class>.
const (
	ClassConversion = "conversion"
	ClassCanceled   = "canceled"
	ClassTimeout    = "timeout"
	ClassOther      = "other"
)

// Classifier is implemented by backend errors that know their class.
type Classifier interface {
	Class() string
}

// OperationError is one failed query. It is logged and counted, never
// returned from Run.
type OperationError struct {
	Worker    int
	Iteration int
	Query     int
	Class     string
	Err       error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("worker %d iteration %d query %d: %s: %v", e.Worker, e.Iteration, e.Query, e.Class, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// WorkerFatalError reports a worker that panicked. It aborts the run.
type WorkerFatalError struct {
	Worker int
	Value  any
	Stack  []byte
}

func (e *WorkerFatalError) Error() string {
	return fmt.Sprintf("worker %d crashed: %v", e.Worker, e.Value)
}

// Classify maps an operation error to its counter class.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	var c Classifier
	if errors.As(err, &c) {
		if class := c.Class(); class != "" {
			return class
		}
	}
	switch {
	case errors.Is(err, workload.ErrConversion):
		return ClassConversion
	case errors.Is(err, context.Canceled):
		return ClassCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ClassTimeout
	default:
		return ClassOther
	}
}
