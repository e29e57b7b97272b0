// Command inventorybot runs the guild inventory service: the HTTP API, the
// scheduled jobs and the maintenance commands around them.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
