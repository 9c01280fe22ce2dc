package domain

import (
	"errors"
	"fmt"
)

// ErrDataUnavailable is matched by every DataUnavailableError via errors.Is.
var ErrDataUnavailable = errors.New("data unavailable")

// DataUnavailableError reports that a dataset file is absent, unreadable or
// unparsable. It is fatal for that dataset's analysis.
type DataUnavailableError struct {
	Dataset string
	Path    string
	Err     error
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("dataset %s unavailable (%s): %v", e.Dataset, e.Path, e.Err)
}

func (e *DataUnavailableError) Unwrap() error { return e.Err }

// Is lets callers test against ErrDataUnavailable without errors.As.
func (e *DataUnavailableError) Is(target error) bool {
	return target == ErrDataUnavailable
}
