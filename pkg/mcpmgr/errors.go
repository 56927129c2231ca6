package mcpmgr

import (
	"errors"
	"fmt"
)

// ErrAlreadyInitialized is returned by a second call to Manager.Initialize.
var ErrAlreadyInitialized = errors.New("mcpmgr: already initialized")

// InitStage names the step of server startup that failed.
type InitStage string

const (
	StageResolve      InitStage = "resolve"
	StageLaunch       InitStage = "launch"
	StageConnect      InitStage = "connect"
	StageCapabilities InitStage = "capabilities"
)

// InitError reports which server failed to start and at which stage.
type InitError struct {
	ServerKey string
	Stage     InitStage
	Err       error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("mcpmgr: %s %s: %v", e.ServerKey, e.Stage, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// ToolError is returned when a server answers a tool call with an error
// result. Message carries the text the server reported.
type ToolError struct {
	ServerKey string
	Tool      string
	Message   string
}

func (e *ToolError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("tool %s on %s failed", e.Tool, e.ServerKey)
	}
	return e.Message
}
