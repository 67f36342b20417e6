package failure

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	// KindUnknown is reported for errors that did not come from this package.
	KindUnknown Kind = iota
	// KindCommand means an external command exited with a non-zero status or could not start.
	KindCommand
	// KindMissingFile means a template or static source file does not exist.
	KindMissingFile
	// KindFilesystem covers every other filesystem error (mkdir, write, copy, chmod).
	KindFilesystem
	// KindInvalidConfig means the configuration or the substitution table is unusable.
	KindInvalidConfig
	// KindLocked means another live process holds the staging tree.
	KindLocked
	// KindUnresolvedToken means rendered output still contains placeholders in strict mode.
	KindUnresolvedToken
)

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrCommand         = errors.New("external command failed")
	ErrMissingFile     = errors.New("source file not found")
	ErrFilesystem      = errors.New("filesystem error")
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrLocked          = errors.New("staging tree is locked")
	ErrUnresolvedToken = errors.New("unresolved placeholder")
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindMissingFile:
		return "missing-file"
	case KindFilesystem:
		return "filesystem"
	case KindInvalidConfig:
		return "invalid-config"
	case KindLocked:
		return "locked"
	case KindUnresolvedToken:
		return "unresolved-token"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindCommand:
		return ErrCommand
	case KindMissingFile:
		return ErrMissingFile
	case KindFilesystem:
		return ErrFilesystem
	case KindInvalidConfig:
		return ErrInvalidConfig
	case KindLocked:
		return ErrLocked
	case KindUnresolvedToken:
		return ErrUnresolvedToken
	default:
		return nil
	}
}

// Error is a classified pipeline failure.
type Error struct {
	// Kind classifies the failure.
	Kind Kind
	// Op names the step that failed, e.g. "render template".
	Op string
	// Path is the file involved, if any.
	Path string
	// Command is the argv of the failed external command (KindCommand only).
	Command []string
	// ExitCode is the exit status of the failed command, -1 if it never ran.
	ExitCode int
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(e.Op)

	switch {
	case e.Kind == KindCommand:
		fmt.Fprintf(&b, ": %q exited with code %d", strings.Join(e.Command, " "), e.ExitCode)
	case e.Path != "":
		fmt.Fprintf(&b, " %s", e.Path)
	}

	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	} else if s := e.Kind.sentinel(); s != nil {
		b.WriteString(": ")
		b.WriteString(s.Error())
	}

	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of this error's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()

	return s != nil && target == s
}

// New returns an *Error of the given kind.
func New(kind Kind, op, path string, err error) *Error {
	return &Error{
		Kind:     kind,
		Op:       op,
		Path:     path,
		ExitCode: -1,
		Err:      err,
	}
}

// Command returns a KindCommand error for argv that exited with exitCode.
func Command(argv []string, exitCode int, err error) *Error {
	return &Error{
		Kind:     KindCommand,
		Op:       "run command",
		Command:  append([]string(nil), argv...),
		ExitCode: exitCode,
		Err:      err,
	}
}

// InvalidConfig returns a KindInvalidConfig error with a formatted cause.
func InvalidConfig(format string, args ...any) *Error {
	return New(KindInvalidConfig, "validate configuration", "", fmt.Errorf(format, args...))
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindUnknown
}
