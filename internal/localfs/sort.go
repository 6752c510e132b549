package localfs

import (
	"sort"
	"strings"
)

// NaturalLess compares strings with digit runs ordered by value, so
// "page2" sorts before "page10". With equal values the shorter run
// (fewer leading zeros) wins.
func NaturalLess(a, b string) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if isDigit(a[i]) && isDigit(b[j]) {
			startA := i
			for i < len(a) && a[i] == '0' {
				i++
			}
			valStartA := i
			for i < len(a) && isDigit(a[i]) {
				i++
			}

			startB := j
			for j < len(b) && b[j] == '0' {
				j++
			}
			valStartB := j
			for j < len(b) && isDigit(b[j]) {
				j++
			}

			valA, valB := a[valStartA:i], b[valStartB:j]
			if len(valA) != len(valB) {
				return len(valA) < len(valB)
			}
			if valA != valB {
				return valA < valB
			}
			if runA, runB := i-startA, j-startB; runA != runB {
				return runA < runB
			}
			continue
		}

		if a[i] != b[j] {
			return a[i] < b[j]
		}
		i++
		j++
	}
	return len(a)-i < len(b)-j
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// SortNatural sorts paths case-insensitively in natural order.
func SortNatural(paths []string) {
	sort.SliceStable(paths, func(x, y int) bool {
		return NaturalLess(strings.ToLower(paths[x]), strings.ToLower(paths[y]))
	})
}
