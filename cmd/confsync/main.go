package main

import (
	"context"
	"fmt"
	"os"

	"github.com/treffen/confsync/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "confsync:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
