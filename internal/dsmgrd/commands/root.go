/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

// Package commands wires the dsmgrd demo CLI: a cobra root command that loads one or more
// DAP debug adapter configurations and drives a session.Manager through their lifetime.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/dsmgr/dsm/pkg/logger"
)

var (
	launchConfigPaths []string
	breakAllProcesses bool
	ignoreBreakInstr  bool
	providerKind      string
)

// NewRootCmd builds the dsmgrd root command.
func NewRootCmd(log *logger.Logger) (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		SilenceErrors: true,
		Use:           "dsmgrd",
		Short:         "Attaches Debug Adapter Protocol engines and coordinates their lifecycle",
		Long: `dsmgrd is a demo host for the Debug Session Manager.

	It launches one or more Debug Adapter Protocol adapter processes, attaches each to the
	session manager as an Engine, and logs the resulting process/runtime/break lifecycle events
	until the process receives a shutdown signal.`,
		RunE:         runServe(log),
		SilenceUsage: true,
	}

	rootCmd.Flags().StringArrayVarP(&launchConfigPaths, "launch", "l", nil, "Path to a JSON-encoded dapengine.DebugAdapterConfig to start. May be repeated.")
	rootCmd.Flags().BoolVar(&breakAllProcesses, "break-all", false, "Upgrade every run/break control call into a run-all/break-all.")
	rootCmd.Flags().BoolVar(&ignoreBreakInstr, "ignore-break-instructions", false, "Don't pause on ProgramBreak messages that lack the Continue flag.")
	rootCmd.Flags().StringVar(&providerKind, "provider-kind", "dap", "Kind name reported by the debug adapter engine provider.")

	log.AddLevelFlag(rootCmd.PersistentFlags())

	return rootCmd, nil
}
