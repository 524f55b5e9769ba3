/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dsmgr/dsm/internal/dapengine"
	"github.com/dsmgr/dsm/internal/session"
	"github.com/dsmgr/dsm/pkg/logger"
)

func runServe(log *logger.Logger) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		log := log.WithName("serve")

		if len(launchConfigPaths) == 0 {
			return fmt.Errorf("dsmgrd: at least one --launch config is required")
		}

		configs := make([]*dapengine.DebugAdapterConfig, 0, len(launchConfigPaths))
		for _, path := range launchConfigPaths {
			config, err := loadAdapterConfig(path)
			if err != nil {
				return fmt.Errorf("dsmgrd: failed to load %s: %w", path, err)
			}
			configs = append(configs, config)
		}

		ctx := cmd.Context()

		mgr := session.NewManager(
			ctx,
			session.Config{
				BreakAllProcesses:       breakAllProcesses,
				IgnoreBreakInstructions: ignoreBreakInstr,
			},
			session.WithLogger(log.Logger),
			session.WithEngineProviders(dapengine.NewProvider(ctx, providerKind, 0, log.Logger)),
		)
		defer mgr.Close()

		events := make(chan session.Event, 16)
		unsubscribe := mgr.Subscribe(events)
		defer unsubscribe()

		go logEvents(ctx, log, events)

		for _, config := range configs {
			if err := mgr.Start(config); err != nil {
				return fmt.Errorf("dsmgrd: failed to start engine: %w", err)
			}
		}

		log.Info("dsmgrd running", "engines", len(configs))
		<-ctx.Done()
		log.Info("shutting down")

		return nil
	}
}

func loadAdapterConfig(path string) (*dapengine.DebugAdapterConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	config := &dapengine.DebugAdapterConfig{}
	if err := json.Unmarshal(data, config); err != nil {
		return nil, err
	}
	return config, nil
}

func logEvents(ctx context.Context, log *logger.Logger, events <-chan session.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			logEvent(log, evt)
		}
	}
}

func logEvent(log *logger.Logger, evt session.Event) {
	switch evt.Kind {
	case session.EventProcessesChanged:
		for _, p := range evt.ProcessesChanged.Processes {
			log.Info("process changed", "diff", diffName(evt.ProcessesChanged.Diff), "pid", p.Pid, "state", p.State)
		}
	case session.EventDebugTagsChanged:
		log.Info("debug tags changed", "diff", diffName(evt.DebugTagsChanged.Diff), "tags", evt.DebugTagsChanged.Tags)
	case session.EventProcessPaused:
		log.Info("process paused", "pid", evt.ProcessPaused.Process.Pid, "runtimeId", evt.ProcessPaused.Runtime.ID)
	case session.EventIsDebuggingChanged:
		log.Info("is-debugging changed", "isDebugging", evt.IsDebugging)
	case session.EventIsRunningChanged, session.EventDelayedIsRunningChanged:
		log.Info("is-running changed", "isRunning", evt.IsRunning)
	case session.EventDbgManagerMessage:
		log.Info("manager message", "kind", evt.DbgManagerMessage.Kind, "text", evt.DbgManagerMessage.Text)
	}
}

func diffName(d session.DiffKind) string {
	if d == session.DiffAdded {
		return "added"
	}
	return "removed"
}
