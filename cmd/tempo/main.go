package main

import (
	"fmt"
	"os"

	"github.com/teranos/tempo/cmd/tempo/commands"
	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/logger"
)

func main() {
	err := commands.Root().Execute()
	logger.Cleanup()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintln(os.Stderr, "Hint:", hint)
		}
		os.Exit(1)
	}
}
