// Command gatewayd runs the assistant gateway: the credential vault,
// tool bridge manager, agent registry, artifact store, notification
// queue, agent spawner, and scheduler, all behind a WebSocket/HTTP
// front door.
package main

import (
	"context"
	"os"
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
