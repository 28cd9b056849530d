// cmd/ingest/main.go
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(connect).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
