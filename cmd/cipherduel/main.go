package main

import (
	"github.com/lmartell/cipherduel/internal/cli"
)

func main() {
	cli.Execute()
}
