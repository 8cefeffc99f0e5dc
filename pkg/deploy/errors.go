package deploy

import "fmt"

// ProbeError reports a failure while checking whether a function exists
// remotely. A "not found" response is never a ProbeError; only failures
// that leave the function's existence unknown are, and they must not be
// read as "not deployed".
type ProbeError struct {
	FunctionName string
	Err          error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probing function %s: %v", e.FunctionName, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// RoleResolutionError reports that the execution role could not be
// resolved into a usable reference.
type RoleResolutionError struct {
	Role string
	Err  error
}

func (e *RoleResolutionError) Error() string {
	return fmt.Sprintf("resolving role %s: %v", e.Role, e.Err)
}

func (e *RoleResolutionError) Unwrap() error { return e.Err }

// RemoteOperationError reports a create, update, upload or publish call
// rejected by the platform. The platform's own classification stays
// reachable through the wrapped error chain.
type RemoteOperationError struct {
	Op           string // e.g. create-function, update-function-code
	FunctionName string
	Err          error
}

func (e *RemoteOperationError) Error() string {
	return fmt.Sprintf("%s for %s: %v", e.Op, e.FunctionName, e.Err)
}

func (e *RemoteOperationError) Unwrap() error { return e.Err }
