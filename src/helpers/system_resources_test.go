package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecommendedMemoryLimit(t *testing.T) {
	const mb = 1 << 20

	testCases := []struct {
		name  string
		total uint64
		want  int64
	}{
		{name: "unknown", total: 0, want: 512 * mb},
		{name: "tiny machine", total: 256 * mb, want: 256 * mb},
		{name: "small machine floors at 512MB", total: 600 * mb, want: 512 * mb},
		{name: "three quarters", total: 8192 * mb, want: 6144 * mb},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, RecommendedMemoryLimit(tc.total))
		})
	}
}
