package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess     = 0 // Every pair produced a passing answer
	ExitPairFailed  = 1 // Assessment ran, one or more pairs failed
	ExitConfigError = 2 // Configuration or runtime error
)

// AssessmentFailureError indicates the run finished but one or more
// (task, participant) pairs did not pass.
type AssessmentFailureError struct {
	Message string
}

func (e *AssessmentFailureError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var failure *AssessmentFailureError
		if errors.As(err, &failure) {
			os.Exit(ExitPairFailed)
		}
		os.Exit(ExitConfigError)
	}
}
