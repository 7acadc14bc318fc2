package domain

import "fmt"

// MissingInputError reports an input file that does not exist yet. It is a
// soft condition: upstream producers may not have written their output.
type MissingInputError struct {
	Path string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing input %s", e.Path)
}

// MalformedGridError reports axis or array shape problems. Fatal for the file.
type MalformedGridError struct {
	Path   string
	Reason string
}

func (e *MalformedGridError) Error() string {
	if e.Path == "" {
		return "malformed grid: " + e.Reason
	}
	return fmt.Sprintf("malformed grid %s: %s", e.Path, e.Reason)
}

// IdentityComputationError signals a failure to derive an identifier. The
// resolvers are pure, so this indicates a programming error.
type IdentityComputationError struct {
	Err error
}

func (e *IdentityComputationError) Error() string {
	return fmt.Sprintf("compute identity: %v", e.Err)
}

func (e *IdentityComputationError) Unwrap() error { return e.Err }

// StorageError wraps a failure from the persistence layer. The engine does
// not retry; callers decide.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PartialCellWriteError reports that one cell's batch failed. Processing of
// other cells continues.
type PartialCellWriteError struct {
	Lat      float64
	Lon      float64
	SeriesID string
	Err      error
}

func (e *PartialCellWriteError) Error() string {
	return fmt.Sprintf("cell (%s, %s) series %s: %v",
		FormatCoord(e.Lat), FormatCoord(e.Lon), e.SeriesID, e.Err)
}

func (e *PartialCellWriteError) Unwrap() error { return e.Err }
