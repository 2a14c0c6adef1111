package main

import (
	"os"

	"github.com/XavierD3728/stockquant/cmd/stockquant/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
