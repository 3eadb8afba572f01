package pkg

// Contains report whether slice holds val
func Contains[T comparable](slice []T, val T) bool {
	for _, v := range slice {
		if v == val {
			return true
		}
	}
	return false
}

// AppendUnique append the values not yet in slice, keep first-seen order
func AppendUnique[T comparable](slice []T, values ...T) []T {
	for _, v := range values {
		if !Contains(slice, v) {
			slice = append(slice, v)
		}
	}
	return slice
}
