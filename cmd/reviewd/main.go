// Command reviewd serves the fellowship review dashboard and offers
// offline aggregation and export of REDCap marking sheet exports.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
