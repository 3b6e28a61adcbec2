package main

import (
	"os"

	"home-library/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
