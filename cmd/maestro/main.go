// Command maestro is the operator console for the browser-automation agent.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "maestro: %v\n", err)
		os.Exit(1)
	}
}
