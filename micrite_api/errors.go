package micrite_api

import "fmt"

// The kind of failure that stopped a run
type ErrorKind int

const (
	// An input file or its index could not be found or opened
	MissingInput ErrorKind = iota
	// An input file could be opened but its content could not be parsed
	MalformedInput
	// An output file could not be created or written
	OutputFailure
	// An external executable is not on the PATH
	MissingTool
	// An external executable exited with an error
	ToolFailed
	// The configuration contains an impossible value
	InvalidConfig
)

func (k ErrorKind) String() string {
	switch k {
	case MissingInput:
		return "missing input"
	case MalformedInput:
		return "malformed input"
	case OutputFailure:
		return "output failure"
	case MissingTool:
		return "missing tool"
	case ToolFailed:
		return "tool failed"
	case InvalidConfig:
		return "invalid config"
	}
	return "unknown error"
}

// Error carries the kind of failure and where it happened.
// Line is the 1-based line or record number, 0 when unknown.
type Error struct {
	Kind ErrorKind
	Path string
	Line int
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Path != "" {
		msg += " [" + e.Path + "]"
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(" at line %d", e.Line)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}
