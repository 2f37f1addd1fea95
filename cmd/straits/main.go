package main

import (
	"os"

	"straits/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
