package sandbox

import (
	"errors"
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/GriffinCanCode/uniremote/backend/internal/shared/types"
)

var (
	// ErrActionNotFound is returned when actions[id] is not a function
	ErrActionNotFound = errors.New("action not found")

	// ErrStateClosed is returned by every operation after Close
	ErrStateClosed = errors.New("script state closed")

	// ErrScriptRuntime is the class of every interpreter failure
	ErrScriptRuntime = errors.New("script error")

	// ErrInstructionLimit is reported when the instruction budget runs out
	ErrInstructionLimit = errors.New("instruction limit exceeded")

	// ErrMemoryLimit is reported when the memory cap is hit
	ErrMemoryLimit = errors.New("not enough memory")
)

// Limit names the resource limit that aborted a call
type Limit string

const (
	LimitNone         Limit = ""
	LimitInstructions Limit = "instructions"
	LimitMemory       Limit = "memory"
)

// ScriptError is a failure raised by or inside the interpreter
type ScriptError struct {
	Op      string // load, action, event, detect, include, callback
	Remote  types.RemoteID
	Message string
	Limit   Limit
}

func (e *ScriptError) Error() string {
	if e.Remote == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Remote, e.Op, e.Message)
}

func (e *ScriptError) Unwrap() []error {
	switch e.Limit {
	case LimitInstructions:
		return []error{ErrScriptRuntime, ErrInstructionLimit}
	case LimitMemory:
		return []error{ErrScriptRuntime, ErrMemoryLimit}
	default:
		return []error{ErrScriptRuntime}
	}
}

// IsLimit reports whether err is a ScriptError caused by a resource limit
func IsLimit(err error) bool {
	var se *ScriptError
	return errors.As(err, &se) && se.Limit != LimitNone
}

var memoryMarkers = []string{
	ErrMemoryLimit.Error(),
	"registry overflow",
	"stack overflow",
	"out of memory",
	"makeslice: len out of range",
	"growslice: len out of range",
	"output length overflow",
}

// classify turns an interpreter error into a ScriptError. tripped is the
// budget's verdict, which wins over message sniffing.
func (s *State) classify(op string, err error, tripped error) *ScriptError {
	msg := err.Error()
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) && apiErr.Object != nil {
		msg = apiErr.Object.String()
	}

	limit := LimitNone
	switch {
	case errors.Is(tripped, ErrInstructionLimit):
		limit = LimitInstructions
	case errors.Is(tripped, ErrMemoryLimit):
		limit = LimitMemory
	case strings.Contains(msg, ErrInstructionLimit.Error()):
		limit = LimitInstructions
	default:
		for _, marker := range memoryMarkers {
			if strings.Contains(msg, marker) {
				limit = LimitMemory
				break
			}
		}
	}

	return &ScriptError{
		Op:      op,
		Remote:  s.remote,
		Message: msg,
		Limit:   limit,
	}
}
