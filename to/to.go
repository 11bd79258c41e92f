// Package to provides pointer helpers for building option structs.
package to

// Ptr returns a pointer to the provided value.
func Ptr[T any](v T) *T {
	return &v
}

// SliceOfPtrs returns a slice of *T from the specified values.
func SliceOfPtrs[T any](vv ...T) []*T {
	slice := make([]*T, len(vv))
	for i := range vv {
		slice[i] = Ptr(vv[i])
	}
	return slice
}
