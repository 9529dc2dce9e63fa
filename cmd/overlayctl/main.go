// Command overlayctl signs members in and out against a user directory and
// lets operators suspend, reinstate and hide accounts from the shell.
package main

import (
	"os"

	"github.com/MrEthical07/goOverlay/cmd/overlayctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
