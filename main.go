package main

import (
	"os"

	"redshift-dr/src/cli"
)

func main() {
	os.Exit(cli.Execute())
}
