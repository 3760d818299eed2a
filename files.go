/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"strconv"
)

var sizeUnits = []string{"B", "kB", "MB", "GB"}

// humanReadableSize formats n bytes with SI units.
func humanReadableSize(n int64) string {
	size := float64(n)
	unit := 0
	for size >= 1000 && unit < len(sizeUnits)-1 {
		size /= 1000
		unit++
	}
	if unit == 0 {
		return strconv.FormatInt(n, 10) + " B"
	}
	return strconv.FormatFloat(size, 'f', 1, 64) + " " + sizeUnits[unit]
}
