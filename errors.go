package priosched

import (
	"errors"
	"fmt"
)

// ErrDeadlock is returned by [Runner.Run] when every live thread is blocked
// and none can ever be woken.
var ErrDeadlock = errors.New("priosched: deadlock")

// ContractError is the panic value raised when a caller breaks a
// precondition, such as releasing a lock it does not hold. These are kernel
// bugs, so they are never returned as errors.
type ContractError struct {
	Op  string
	Msg string
}

func (e *ContractError) Error() string {
	return "priosched: " + e.Op + ": " + e.Msg
}

func contractf(op, format string, args ...any) *ContractError {
	return &ContractError{Op: op, Msg: fmt.Sprintf(format, args...)}
}
