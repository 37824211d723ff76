package bytecode

import (
	"fmt"
	"strings"

	"github.com/sylt-lang/sylt/pkg/value"
)

// CompileError is a name-resolution or structural compile failure.
type CompileError struct {
	File    string
	Line    int
	Message string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s:%d: compile error: %s", e.File, e.Line, e.Message)
}

// RuntimeError is a fault during execution, real or typechecking.
type RuntimeError struct {
	File    string
	Line    int
	Message string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s:%d: runtime error: %s", e.File, e.Line, e.Message)
}

// ArgError reports an extern call whose argument count or shapes do
// not match what the function accepts. Distinct from failures the
// host function itself reports.
type ArgError struct {
	Name string
	Args []value.Value
}

func (e *ArgError) Error() string {
	shapes := make([]string, len(e.Args))
	for i, a := range e.Args {
		shapes[i] = value.TypeOf(a).String()
	}
	return fmt.Sprintf("%s does not accept arguments (%s)", e.Name, strings.Join(shapes, ", "))
}

// ExternError wraps a failure reported by the host function itself.
type ExternError struct {
	Name    string
	Message string
}

func (e *ExternError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// TypeError is a mismatch found by the typecheck pass. It aborts the
// check before any real run.
type TypeError struct {
	File    string
	Line    int
	Message string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s:%d: type error: %s", e.File, e.Line, e.Message)
}
