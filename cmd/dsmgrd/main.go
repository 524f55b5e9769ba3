/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dsmgr/dsm/internal/dsmgrd/commands"
	"github.com/dsmgr/dsm/internal/resiliency"
	"github.com/dsmgr/dsm/pkg/logger"
	"github.com/dsmgr/dsm/pkg/osutil"
)

const (
	errCommandError = 1
	errSetup        = 2
	errPanic        = 3
)

func main() {
	log := logger.New("dsmgrd").
		WithResourceSink().
		WithName("dsmgrd")

	defer func() {
		panicErr := resiliency.MakePanicError(recover(), log.Logger)
		if panicErr != nil {
			os.Stderr.WriteString(panicErr.Error() + string(osutil.LineSep()))
			log.Flush()
			os.Exit(errPanic)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, err := commands.NewRootCmd(log)
	if err != nil {
		log.Error(err, "failed to build root command")
		log.Flush()
		os.Exit(errSetup)
	}

	if err := root.ExecuteContext(ctx); err != nil {
		log.Error(err, "dsmgrd exited with an error")
		log.Flush()
		os.Exit(errCommandError)
	}

	log.Flush()
}
