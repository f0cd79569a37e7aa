// Package main implements the go-ir-query CLI (irq).
// It extracts call graphs, node tables and layouts from IR graph dumps.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/l3aro/go-ir-query/cmd/irq/commands"
)

var (
	version   = "dev"
	buildTime = ""
)

func main() {
	commands.RootCmd.Flags().BoolP("version", "v", false, "Print version information")
	commands.RootCmd.SetVersionTemplate(`irq version {{.Version}}
`)
	commands.RootCmd.Version = version
	if buildTime != "" {
		commands.RootCmd.Version = version + " (built " + buildTime + ")"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
