package main

import (
	"os"

	"audio-digest/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
