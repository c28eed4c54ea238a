// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package store

import "errors"

var (
	// ErrInvalidParameter is an invalid parameter error
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNotFound is returned by a Backend when a document does not exist or
	// has expired.  The Adapter never returns it; absence is reported as a nil
	// Map.
	ErrNotFound = errors.New("not found")

	// ErrProductionSweep is returned when a bootstrap sweep is attempted in a
	// production environment.
	ErrProductionSweep = errors.New("sweep refused in production")

	// ErrClosed is returned by a Backend that has been closed.
	ErrClosed = errors.New("backend closed")
)
