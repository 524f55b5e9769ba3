/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

/*
Package dapengine launches Debug Adapter Protocol (DAP) adapter processes over
stdio and adapts them to the session.Engine contract.

# Key components

  - LaunchDebugAdapter: starts an adapter process via process.Executor and wires
    up a Transport over its stdin/stdout pipes.
  - Transport: length-prefixed DAP message I/O, implemented for stdio and TCP.
  - Engine: translates DAP requests/events into session.EngineMessage values and
    forwards session-issued commands as DAP requests.

# Usage

	adapter, err := dapengine.LaunchDebugAdapter(ctx, executor, config, log)
	if err != nil {
		return err
	}
	eng := dapengine.NewEngine(adapter, config, log)
*/
package dapengine
