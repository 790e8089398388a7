package devtools

import (
	"errors"
	"fmt"
	"time"
)

// ErrChannelClosed is returned by channel operations after Close.
var ErrChannelClosed = errors.New("control channel closed")

// ConnectivityError indicates the remote debugging endpoint itself is
// unreachable. This is fatal to the whole run and is never retried here.
type ConnectivityError struct {
	Endpoint string
	Err      error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("remote debugging endpoint %s unreachable: %v", e.Endpoint, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// NoTargetError indicates no browser tab satisfied the selection policy.
// Fatal to the attempt; opening a new tab is the operator's job.
type NoTargetError struct {
	OriginMatch string
}

func (e *NoTargetError) Error() string {
	if e.OriginMatch == "" {
		return "no usable browser target available"
	}
	return fmt.Sprintf("no usable browser target matching %q", e.OriginMatch)
}

// ProtocolTimeoutError indicates a WaitFor did not observe its predicate
// within budget. State is filled in by the sequencer for diagnostics.
type ProtocolTimeoutError struct {
	State      string
	WaitingFor string
	Elapsed    time.Duration
}

func (e *ProtocolTimeoutError) Error() string {
	if e.State == "" {
		return fmt.Sprintf("timed out after %s waiting for %s", e.Elapsed.Round(time.Millisecond), e.WaitingFor)
	}
	return fmt.Sprintf("timed out in state %s after %s waiting for %s",
		e.State, e.Elapsed.Round(time.Millisecond), e.WaitingFor)
}

// CommandError is a protocol-level error reply to a specific command id.
type CommandError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("devtools command failed: %s (code %d)", e.Message, e.Code)
}
