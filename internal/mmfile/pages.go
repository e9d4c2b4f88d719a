package mmfile

// roundPages rounds n up to a whole number of pages. The result is smaller
// than n when the rounding overflows.
func roundPages(n int) int {
	mask := PageSize() - 1
	return (n + mask) &^ mask
}
