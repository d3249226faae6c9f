// Copyright The Evalprof Authors
// SPDX-License-Identifier: Apache-2.0

package libprof

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModeFromString(t *testing.T) {
	// Simple check whether all Mode values can be converted to string and back.
	for _, mode := range []Mode{ModeNone, ModeSample} {
		name := mode.String()
		result := ModeFromString(name)
		require.Equal(t, mode, result)
	}
}

func TestModeFromStringUnknown(t *testing.T) {
	require.Equal(t, ModeNone, ModeFromString("tracing"))
}
