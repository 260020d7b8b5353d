// Kunhua Huang 2026

// Command tcpsocketsipv6 runs the IPv6 socket harness on [::1]:6432. The
// endpoint is resolved once by the launcher and handed to the client.
package main

import (
	"os"

	"github.com/ecstasoy/sockharness/pkg/endpoint"
	"github.com/ecstasoy/sockharness/pkg/harness"
)

func main() {
	os.Exit(harness.Main(endpoint.IPv6, os.Args[1:]))
}
