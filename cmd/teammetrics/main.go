package main

import (
	"os"

	"teammetrics/cmd/teammetrics/commands"
)

func main() {
	os.Exit(commands.Execute())
}
