// Copyright 2025 Joseph Cumines

package main

import (
	"github.com/spf13/cobra"

	"github.com/joeycumines/abu/internal/client"
	"github.com/joeycumines/abu/internal/protocol"
)

// addSnapshotFlags registers the snapshot options accepted by every
// command.
func addSnapshotFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("compact", false, "Omit unlabeled non-interactive nodes")
	cmd.Flags().Bool("interactive", false, "Only print interactive elements, as a flat list")
	cmd.Flags().Int("max-depth", 0, "Maximum tree depth to print (0 is unlimited)")
	cmd.Flags().Bool("effect-logs", false, "Include pending effect logs in the response")
}

// snapshotParams returns the snapshot options explicitly set on cmd, keyed
// by their wire names.
func snapshotParams(cmd *cobra.Command) map[string]any {
	params := make(map[string]any)
	flags := cmd.Flags()
	for flag, key := range map[string]string{
		"compact":     "compact",
		"interactive": "interactive",
		"effect-logs": "effectLogs",
	} {
		if flags.Changed(flag) {
			v, _ := flags.GetBool(flag)
			params[key] = v
		}
	}
	if flags.Changed("max-depth") {
		v, _ := flags.GetInt("max-depth")
		params["maxDepth"] = v
	}
	return params
}

func newSnapshotCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the current accessibility snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd.Context(), cmd.OutOrStdout(), opts, protocol.CommandSnapshot, snapshotParams(cmd))
		},
	}
	addSnapshotFlags(cmd)
	return cmd
}

func newClickCmd(opts *options) *cobra.Command {
	return newRefCmd(opts, protocol.CommandClick, "Click the element with the given ref")
}

func newHoverCmd(opts *options) *cobra.Command {
	return newRefCmd(opts, protocol.CommandHover, "Hover over the element with the given ref")
}

func newRefCmd(opts *options, name, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name + " REF",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := snapshotParams(cmd)
			params["ref"] = client.StripRef(args[0])
			return send(cmd.Context(), cmd.OutOrStdout(), opts, name, params)
		},
	}
	addSnapshotFlags(cmd)
	return cmd
}

func newDragCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drag SOURCE [TARGET]",
		Short: "Drag the source element, optionally onto a target element",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := snapshotParams(cmd)
			params["source"] = client.StripRef(args[0])
			if len(args) > 1 {
				params["target"] = client.StripRef(args[1])
			}
			return send(cmd.Context(), cmd.OutOrStdout(), opts, protocol.CommandDrag, params)
		},
	}
	addSnapshotFlags(cmd)
	return cmd
}

func newScreenshotCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "screenshot",
		Short: "Capture the host's current frame and print the saved PNG path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd.Context(), cmd.OutOrStdout(), opts, protocol.CommandScreenshot, nil)
		},
	}
}
