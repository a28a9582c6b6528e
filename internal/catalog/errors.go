package catalog

import (
	"errors"
	"fmt"
)

// ErrEmptyQuery is returned by Search for a blank query. No request is made.
var ErrEmptyQuery = errors.New("catalog: search query is empty")

// RemoteLookupError reports a failed call to the remote catalog: a transport
// error, a non-2xx response, or a payload that could not be decoded
type RemoteLookupError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *RemoteLookupError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("catalog %s: unexpected status code %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("catalog %s: %v", e.Op, e.Err)
}

func (e *RemoteLookupError) Unwrap() error {
	return e.Err
}
