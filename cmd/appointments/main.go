// Command appointments runs the multi-tenant appointment booking API.
//
// Usage:
//
//	appointments [serve]
//	appointments customers -tenant ID [-start YYYY-MM-DD] [-end YYYY-MM-DD] [-q text]
//	appointments healthcheck
//
// Configuration is read from the environment and an optional .env file.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := Run(context.Background(), os.Stderr, os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "appointments: %v\n", err)
		os.Exit(1)
	}
}
