package main

// Command selects what the binary does.
type Command string

const (
	// CommandServe runs the HTTP API.
	CommandServe Command = "serve"
	// CommandCustomers prints the customer list derived from a running API.
	CommandCustomers Command = "customers"
	// CommandHealthcheck probes the local /healthz endpoint. Used by
	// container health checks where no shell is available.
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand returns the subcommand named by args[0]. Empty or unknown
// input falls back to CommandServe.
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "customers":
		return CommandCustomers
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}
