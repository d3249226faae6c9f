// Copyright The Evalprof Authors
// SPDX-License-Identifier: Apache-2.0

// Package util holds general purpose helpers.
package util // import "github.com/evalprof/evalprof/util"

import (
	"math/bits"
)

// NextPowerOfTwo returns input value if it's a power of two,
// otherwise it returns the next power of two.
func NextPowerOfTwo(v uint32) uint32 {
	if v == 0 {
		return 1
	}
	return 1 << bits.Len32(v-1)
}
