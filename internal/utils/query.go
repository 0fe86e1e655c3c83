package utils

import (
	"strconv"
	"strings"
)

// ParseQueryList handles both repeated and comma-separated query params.
// Example:
//
//	?category=cafe,pizza   → ["cafe","pizza"]
//	?tag=vegan&tag=halal   → ["vegan","halal"]
func ParseQueryList(q map[string][]string, key string) []string {
	values := q[key]

	if len(values) == 0 {
		return nil
	}

	var cleaned []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				cleaned = append(cleaned, p)
			}
		}
	}
	return cleaned
}

// ParseQueryFloat returns the float value of key, or fallback when absent or invalid.
func ParseQueryFloat(q map[string][]string, key string, fallback float64) float64 {
	values := q[key]
	if len(values) == 0 {
		return fallback
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(values[0]), 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// ParseQueryInt returns the int value of key, or fallback when absent or invalid.
func ParseQueryInt(q map[string][]string, key string, fallback int) int {
	values := q[key]
	if len(values) == 0 {
		return fallback
	}
	v, err := strconv.Atoi(strings.TrimSpace(values[0]))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
