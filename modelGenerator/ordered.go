package modelGenerator

import (
	"sort"
	"strings"
)

func sortedCaseInsensitiveStringKeys[V any](m map[string]V) []string {

	keys := make([]string, len(m))
	i := 0
	for k := range m {
		keys[i] = k
		i++
	}

	// A case insensitive sort
	sort.Slice(keys, func(i, j int) bool {
		left := strings.ToLower(keys[i])
		right := strings.ToLower(keys[j])
		return left < right
	})

	return keys
}
