package main

import (
	"os"

	"github.com/darkhz/avrctl/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		os.Exit(1)
	}
}
