package ingest

import "fmt"

// ConfigError rejects an upload before streaming begins: wrong extension,
// oversized file, unusable header. Surfaced synchronously to the caller.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "config: " + e.Reason }

// ParseError covers malformed input that cannot be recovered locally, such
// as a file with no rows at all. Row-level parse problems never surface as
// errors; they are dropped or nulled where they occur.
type ParseError struct {
	Line   int64
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse: line %d: %s", e.Line, e.Reason)
	}
	return "parse: " + e.Reason
}

// WriteError wraps a row-store or result-store failure that survived the
// bounded retries.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string { return fmt.Sprintf("write %s: %v", e.Op, e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }
