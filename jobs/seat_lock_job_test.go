package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSweepIntervalMinutes(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want int
	}{
		{name: "unset defaults to 1", env: "", want: 1},
		{name: "configured value", env: "5", want: 5},
		{name: "non-numeric defaults", env: "often", want: 1},
		{name: "zero defaults", env: "0", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SEAT_LOCK_CLEANUP_MINUTES", tt.env)
			assert.Equal(t, tt.want, SweepIntervalMinutes())
		})
	}
}
