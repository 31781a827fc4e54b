// Package floatutils implements utility functions for dealing with
// float64 values and slices
package floatutils

import "math"

// Max returns the maximum of a list of float64 values
func Max(values ...float64) float64 {
	max := math.Inf(-1)
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	return max
}

// Min returns the minimum of a list of float64 values
func Min(values ...float64) float64 {
	min := math.Inf(1)
	for _, v := range values {
		if v < min {
			min = v
		}
	}
	return min
}

// MaxSlice returns the maximum value in a slice together with its first
// index of occurrence
func MaxSlice(values []float64) (float64, int) {
	max, index := math.Inf(-1), -1
	for i, v := range values {
		if v > max {
			max, index = v, i
		}
	}
	return max, index
}

// ArgMaxAll returns every index at which a slice attains its maximum
func ArgMaxAll(values []float64) []int {
	max, _ := MaxSlice(values)
	var indices []int
	for i, v := range values {
		if v == max {
			indices = append(indices, i)
		}
	}
	return indices
}

// Clip clips a value to the interval [min, max]
func Clip(value, min, max float64) float64 {
	if min > max {
		panic("clip: min > max")
	}
	return math.Min(max, math.Max(value, min))
}
