package scheduling

// allowedDurations is the fixed, ascending set of meeting lengths (minutes)
// the external service accepts.
var allowedDurations = []int{5, 10, 15, 20, 25, 30, 45, 50, 60, 75, 80, 90, 120, 150, 180, 240, 300, 360, 420, 480}

// NearestDuration snaps a requested duration to the member of
// allowedDurations with the minimal absolute difference. Exact midpoints
// resolve to the smaller value: the slice is scanned ascending and only a
// strictly smaller difference replaces the current pick.
func NearestDuration(minutes int) int {
	best := allowedDurations[0]
	bestDiff := absInt(minutes - best)
	for _, d := range allowedDurations[1:] {
		diff := absInt(minutes - d)
		if diff < bestDiff {
			best = d
			bestDiff = diff
		}
	}
	return best
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
