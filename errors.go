package progc

import (
	"errors"
	"fmt"

	"github.com/gogpu/progc/driver"
)

// Service errors.
var (
	// ErrServiceClosed is returned by operations on a closed Service. Tokens
	// whose jobs were still queued at Close are cancelled with this cause.
	ErrServiceClosed = errors.New("progc: service closed")

	// ErrNilPlatform is returned by New for a nil platform.
	ErrNilPlatform = errors.New("progc: platform is nil")

	// ErrNilCallback is returned by NotifyWhenAllProgramsAreReady for a nil callback.
	ErrNilCallback = errors.New("progc: callback is nil")

	// ErrNilProgram is returned by CreateProgram for a nil description.
	ErrNilProgram = errors.New("progc: program description is nil")

	// ErrNilToken is returned when a nil token is passed.
	ErrNilToken = errors.New("progc: token is nil")

	// ErrInvalidPriority is returned for a priority outside the configured levels.
	ErrInvalidPriority = errors.New("progc: invalid priority")

	// ErrInvalidProgram is returned when a program description fails validation.
	ErrInvalidProgram = errors.New("progc: invalid program description")

	// ErrTokenReleased is returned by GetProgram on a token that was already
	// consumed by GetProgram or disposed by Terminate.
	ErrTokenReleased = errors.New("progc: token already released")

	// ErrCancelled is the error of a token that was cancelled before its
	// program was built.
	ErrCancelled = errors.New("progc: compilation cancelled")

	// ErrCompileFailed is matched by every *StageError.
	ErrCompileFailed = errors.New("progc: shader compilation failed")

	// ErrLinkFailed is matched by every *LinkError.
	ErrLinkFailed = errors.New("progc: program link failed")

	// ErrPoolInit is returned by New when worker contexts cannot be created.
	ErrPoolInit = errors.New("progc: compiler pool initialization failed")
)

// StageError reports a failed stage compilation.
type StageError struct {
	Stage driver.ShaderStage
	// Log is the compiler's diagnostic output.
	Log string
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s shader: %s", e.Stage, e.Log)
}

// Unwrap returns ErrCompileFailed.
func (e *StageError) Unwrap() error { return ErrCompileFailed }

// LinkError reports a failed program link.
type LinkError struct {
	Program string
	// Log is the linker's diagnostic output.
	Log string
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("link %q: %s", e.Program, e.Log)
}

// Unwrap returns ErrLinkFailed.
func (e *LinkError) Unwrap() error { return ErrLinkFailed }
