package gormstore

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionAtLeast(t *testing.T) {
	tests := []struct {
		version string
		min     [3]int
		want    bool
	}{
		{"3.40.1", [3]int{3, 8, 3}, true},
		{"3.8.3", [3]int{3, 8, 3}, true},
		{"3.8.2", [3]int{3, 8, 3}, false},
		{"3.7.17", [3]int{3, 8, 3}, false},
		{"8.0.36", [3]int{8, 0, 0}, true},
		{"8.0.36-debian", [3]int{8, 0, 0}, true},
		{"5.7.44-log", [3]int{8, 0, 0}, false},
		{"8.4.0+maria", [3]int{8, 0, 0}, true},
		{"10.11.6 MariaDB", [3]int{8, 0, 0}, true},
		// Short versions imply zero for the missing parts.
		{"9", [3]int{8, 0, 0}, true},
		{"8", [3]int{8, 0, 1}, false},
		{"4.2", [3]int{3, 8, 3}, true},
		// Unparseable parts stop the scan and count as zero.
		{"garbage", [3]int{1, 0, 0}, false},
		{"", [3]int{0, 0, 0}, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_vs_%d.%d.%d", tt.version, tt.min[0], tt.min[1], tt.min[2]), func(t *testing.T) {
			got := versionAtLeast(tt.version, tt.min[0], tt.min[1], tt.min[2])
			assert.Equal(t, tt.want, got)
		})
	}
}
