package backup

import "fmt"

// IntegrityError means the container itself (CSV framing, zip structure, or a
// missing required section) could not be parsed. The import is rejected
// before any rows are written.
type IntegrityError struct {
	Msg string
	Err error
}

func (e *IntegrityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("import rejected: %s: %v", e.Msg, e.Err)
	}
	return "import rejected: " + e.Msg
}

func (e *IntegrityError) Unwrap() error { return e.Err }

// TransportError is a network or auth failure while pushing or pulling one
// sync section. Failures are reported per section; other sections are still
// attempted unless ordering makes that unsafe.
type TransportError struct {
	Section string
	URL     string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("sync %s via %s: %v", e.Section, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
