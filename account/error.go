// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package account

import "errors"

// ErrInvalidParameter is an invalid parameter error
var ErrInvalidParameter = errors.New("invalid parameter")
