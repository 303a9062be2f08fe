package main

import (
	"os"

	"github.com/knsan189/imageLabeler/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
