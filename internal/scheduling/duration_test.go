package scheduling

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNearestDuration_SnapsToClosest(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{35, 30},
		{95, 90},
		{17, 15},
		{1, 5},
		{600, 480},
		{40, 45},
		{46, 45},
		{119, 120},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, NearestDuration(tc.in), "in=%d", tc.in)
	}
}

func TestNearestDuration_ExactMembersUnchanged(t *testing.T) {
	for _, d := range allowedDurations {
		require.Equal(t, d, NearestDuration(d))
	}
}

func TestNearestDuration_TiesFavorSmaller(t *testing.T) {
	// exact midpoints between adjacent members
	cases := []struct {
		in   int
		want int
	}{
		{105, 90},  // between 90 and 120
		{135, 120}, // between 120 and 150
		{165, 150},
		{210, 180},
		{270, 240},
		{330, 300},
		{390, 360},
		{450, 420},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, NearestDuration(tc.in), "in=%d", tc.in)
	}
}

func TestNearestDuration_AlwaysAMember(t *testing.T) {
	members := make(map[int]bool, len(allowedDurations))
	for _, d := range allowedDurations {
		members[d] = true
	}
	for in := 1; in <= 500; in++ {
		require.True(t, members[NearestDuration(in)], "in=%d", in)
	}
}
