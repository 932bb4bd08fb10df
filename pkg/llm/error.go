package llm

import (
	"errors"
	"fmt"
)

// ErrDone is the terminal error of a stream that completed normally.
var ErrDone = errors.New("llm: done")

type Status int

const (
	StatusOK Status = iota
	StatusDone
	StatusTruncated
	StatusBlocked
	StatusError
)

// State is the terminal condition of a stream, carried as the error value
// returned by Stream.Next once generation ends.
type State struct {
	usage  Usage
	status Status
	err    error
}

func Done(usage Usage) *State {
	return &State{usage: usage, status: StatusDone, err: ErrDone}
}

func Truncated(usage Usage) *State {
	return &State{usage: usage, status: StatusTruncated, err: errors.New("llm: generate truncated")}
}

func Blocked(usage Usage, refusal string) *State {
	return &State{usage: usage, status: StatusBlocked, err: fmt.Errorf("llm: generate blocked: %s", refusal)}
}

func Failed(usage Usage, err error) *State {
	return &State{usage: usage, status: StatusError, err: fmt.Errorf("llm: generate error: %w", err)}
}

func (s *State) Usage() Usage   { return s.usage }
func (s *State) Status() Status { return s.status }
func (s *State) Unwrap() error  { return s.err }

func (s *State) Error() string {
	if s.status == StatusDone {
		return "llm: generate done"
	}
	return s.err.Error()
}
