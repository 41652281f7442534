package main

import (
	"fmt"
	"os"

	"github.com/CitroenGames/garden-framework-sub000/cmd/server/commands"
)

func main() {
	if err := commands.RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
