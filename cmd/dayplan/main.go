// Command dayplan plans days from templates and rings alarms as entries
// start.
package main

import (
	"os"

	"github.com/roach88/dayplan/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
