package diag

import (
	"errors"
	"fmt"
)

// ErrUnresolvedPort is wrapped by FatalError when a port name is unknown
// to the prototype it is looked up on.
var ErrUnresolvedPort = errors.New("unresolved port")

// ErrUnresolvedNode is wrapped when an arc or export names a node id that
// does not exist in the cell.
var ErrUnresolvedNode = errors.New("unresolved node")

// ErrUnresolvedProto is wrapped when a node prototype cannot be found.
var ErrUnresolvedProto = errors.New("unresolved prototype")

// ErrCycle is wrapped when the instantiation graph has a cycle.
var ErrCycle = errors.New("hierarchy cycle")

// FatalError means the cell cannot be connectivity-analyzed at all.
type FatalError struct {
	Cell string
	Kind string // "node", "arc", "export" or "cell"
	ID   int
	Err  error
}

func (e *FatalError) Error() string {
	if e.Kind == "cell" || e.Kind == "" {
		return fmt.Sprintf("cell %s: %v", e.Cell, e.Err)
	}
	return fmt.Sprintf("cell %s: %s %d: %v", e.Cell, e.Kind, e.ID, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal builds a FatalError wrapping a formatted cause.
func Fatal(cell, kind string, id int, cause error, format string, args ...any) *FatalError {
	return &FatalError{
		Cell: cell,
		Kind: kind,
		ID:   id,
		Err:  fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), cause),
	}
}

// IsFatal reports whether err carries a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// AsDiagnostic converts the fatal error of a cell into a diagnostic so
// reports can list failed cells next to the findings of analyzed ones.
func AsDiagnostic(cell string, err error) Diagnostic {
	d := Diagnostic{
		Code:    CodeAnalysisFailed,
		Cell:    cell,
		Message: err.Error(),
		Node:    -1,
		Arc:     -1,
		Export:  -1,
	}
	if errors.Is(err, ErrCycle) {
		d.Code = CodeHierarchyCycle
	}
	var fe *FatalError
	if errors.As(err, &fe) && fe.Cell == cell {
		switch fe.Kind {
		case "node":
			d.Node = fe.ID
		case "arc":
			d.Arc = fe.ID
		case "export":
			d.Export = fe.ID
		}
	}
	d.Severity = DefaultSeverity(d.Code)
	return d
}
