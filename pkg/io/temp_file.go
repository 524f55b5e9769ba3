/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package io

import (
	"os"
	"sync"
)

// TempDir returns the directory to use for transient files written by this process.
var TempDir = sync.OnceValue[string](func() string {
	return os.TempDir()
})
