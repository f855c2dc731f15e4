package main

import (
	"fmt"
	"os"
)

func main() {
	err := NewRootCmd().Execute()

	closeErr := closeLogSink()
	if closeErr != nil && err == nil {
		err = closeErr
	}

	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)

		os.Exit(1)
	}
}
