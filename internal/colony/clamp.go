package colony

import "golang.org/x/exp/constraints"

func clamp[T constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func floorZero[T constraints.Float](v T) T {
	if v < 0 {
		return 0
	}
	return v
}
