package metadata

import "fmt"

// DataLoadError reports a metadata source that could not be read, parsed or
// aligned with the classifier's class count.
type DataLoadError struct {
	Source string
	Err    error
}

func (e *DataLoadError) Error() string {
	return fmt.Sprintf("load metadata %s: %v", e.Source, e.Err)
}

func (e *DataLoadError) Unwrap() error { return e.Err }

// IndexOutOfRangeError is returned by Lookup for an index outside [0, N).
type IndexOutOfRangeError struct {
	Index int
	N     int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("class index %d out of range [0, %d)", e.Index, e.N)
}
