// Command mediactl queries the catalog upstreams and the playback source
// list from the terminal, using the same adapters as the gateway.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
