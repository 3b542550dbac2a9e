// ABOUTME: Entry point for the taxdesk CLI
// ABOUTME: Delegates to the cobra command tree in the cli package
package main

import (
	"os"

	"github.com/harperreed/taxdesk/cli"
)

const version = "0.1.0"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
