package mongoclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.mongodb.org/mongo-driver/mongo"
)

// ConnectionError reports a client that could not be configured or could not
// reach the deployment. The connection string is never included since it may
// carry credentials.
type ConnectionError struct {
	Stage string // configure, connect or ping
	Err   error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("mongodb %s failed: %v", e.Stage, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// QueryError is a failed find, tagged with its error class.
type QueryError struct {
	class string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("find (%s): %v", e.class, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Class returns one of timeout, network, canceled, other or
// command:<ServerCodeName>.
func (e *QueryError) Class() string {
	return e.class
}

func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}
	return &QueryError{class: classify(err), Err: err}
}

func classify(err error) string {
	var cmdErr mongo.CommandError
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case mongo.IsTimeout(err):
		return "timeout"
	case mongo.IsNetworkError(err):
		return "network"
	case errors.As(err, &cmdErr):
		if cmdErr.Name != "" {
			return "command:" + cmdErr.Name
		}
		return "command:" + strconv.Itoa(int(cmdErr.Code))
	default:
		return "other"
	}
}
