package main

import (
	"fmt"
	"os"

	"github.com/edwinsyarief/kura/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "kura:", err)
		os.Exit(1)
	}
}
