package slice

// Remove deletes slice[stId:endId] by shifting the tail left over it. The
// relative order of the remaining elements is kept and the vacated tail
// slots are zeroed so they do not pin memory.
func Remove[T any](slice []T, stId int, endId int) []T {
	n := copy(slice[stId:], slice[endId:])

	var zero T
	for i := stId + n; i < len(slice); i++ {
		slice[i] = zero
	}

	return slice[:stId+n]
}

// PushBounded appends v, evicting from the front when len would exceed max.
func PushBounded[T any](slice []T, v T, max int) []T {
	if len(slice) >= max {
		slice = Remove(slice, 0, len(slice)-max+1)
	}

	return append(slice, v)
}

func IsBlank(c byte) bool {
	return c == ' ' || c == '\t'
}

// TrimSpaces returns the index of the first non-blank byte of line at or
// after id.
func TrimSpaces(line string, id int) int {
	for id < len(line) && IsBlank(line[id]) {
		id++
	}

	return id
}
