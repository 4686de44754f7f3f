// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ExitError signals a non-zero exit code without printing an extra
// error message. The command has already written its own output: for
// example "cas load" exiting 1 when the artifact is not in the cache.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the exit code. main checks for this interface to
// distinguish a handled non-zero exit from an error to display.
func (e *ExitError) ExitCode() int {
	return e.Code
}
