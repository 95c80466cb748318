package main

import (
	"os"

	"roomseal/cmd/roomseal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
