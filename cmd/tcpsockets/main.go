// Kunhua Huang 2026

// Command tcpsockets runs the IPv4 socket harness on 127.0.0.1:5432.
//
//	tcpsockets [server-delay [client-connect-delay [client-send-delay [token]]]]
//
// Delays are whole seconds.
package main

import (
	"os"

	"github.com/ecstasoy/sockharness/pkg/endpoint"
	"github.com/ecstasoy/sockharness/pkg/harness"
)

func main() {
	os.Exit(harness.Main(endpoint.IPv4, os.Args[1:]))
}
