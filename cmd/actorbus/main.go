// Command actorbus runs an actor system bridged to a pub/sub bus and asks
// actors over that bus.
//
//	actorbus serve --driver redis --host localhost --port 6379 --metrics-addr :2112
//	actorbus ask echo Echo '{"message":"hi"}' --timeout 2s
//
// Settings are read from --config (YAML), then ACTORBUS_* variables (a .env
// file is loaded if present), then flags.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
