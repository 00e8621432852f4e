// Package main is uictl, a command-line client for the UI automation engine.
package main

import (
	"errors"
	"fmt"
	"os"
)

// errNotOK marks a workflow that answered with ok=false. The envelope has
// already been printed.
var errNotOK = errors.New("workflow reported ok=false")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errNotOK) {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		}
		os.Exit(1)
	}
}
