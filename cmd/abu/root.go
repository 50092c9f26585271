// Copyright 2025 Joseph Cumines

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joeycumines/abu/internal/client"
	"github.com/joeycumines/abu/internal/config"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	port    int
	timeout time.Duration
	json    bool
}

// newRootCmd builds the command tree. defaultPort seeds --port.
func newRootCmd(defaultPort int) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "abu",
		Short: "Drive a running automation bridge",
		Long: `abu sends a single command to the automation bridge listening on
loopback and prints the accessibility snapshot it returns. Refs printed in a
snapshot (e.g. @e1) are accepted with or without the leading "@".`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().IntVar(&opts.port, "port", defaultPort, "Bridge TCP port (default from ABU_PORT or the worktree registry)")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "Print the raw response data as JSON")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", client.DefaultTimeout, "Timeout for the command round trip")

	root.AddCommand(
		newSnapshotCmd(opts),
		newClickCmd(opts),
		newHoverCmd(opts),
		newDragCmd(opts),
		newScreenshotCmd(opts),
	)
	return root
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	port, err := config.ResolvePort()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	if err := newRootCmd(port).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// send issues one command and writes the rendered response to out.
func send(ctx context.Context, out io.Writer, opts *options, name string, params map[string]any) error {
	c := client.New(opts.port, opts.timeout)
	resp, err := c.Send(ctx, name, params)
	if err != nil {
		return err
	}
	text, err := client.Render(name, resp, opts.json)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, text)
	return err
}
