package analysis

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoResult means the program ran to completion without binding result.
var ErrNoResult = errors.New("Code executed but did not assign 'result' variable")

// ExecutionError is a failure raised while running a program.
type ExecutionError struct {
	Kind    string
	Message string
	Line    int
	Trace   string
}

func (e *ExecutionError) Error() string {
	return e.Kind + ": " + e.Message
}

func newError(kind, format string, args ...any) *ExecutionError {
	return &ExecutionError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func typeErrorf(format string, args ...any) *ExecutionError {
	return newError("TypeError", format, args...)
}

func valueErrorf(format string, args ...any) *ExecutionError {
	return newError("ValueError", format, args...)
}

func attributeError(v any, name string) *ExecutionError {
	return newError("AttributeError", "'%s' object has no attribute '%s'", typeName(v), name)
}

func (e *ExecutionError) withTrace(prog *Program, line int) *ExecutionError {
	e.Line = line
	var sb strings.Builder
	sb.WriteString("Traceback (most recent call last):\n")
	fmt.Fprintf(&sb, "  line %d, in <analysis>\n", line)
	if src := strings.TrimSpace(prog.Source(line)); src != "" {
		fmt.Fprintf(&sb, "    %s\n", src)
	}
	sb.WriteString(e.Error())
	e.Trace = sb.String()
	return e
}

// ValidationError explains why a snippet was rejected before execution.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}
