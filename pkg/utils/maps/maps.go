package maps

import "sort"

// keys of m, in no particular order.
func Keys[K comparable, V any](m map[K]V) []K {
	ret := make([]K, 0, len(m))
	for k := range m {
		ret = append(ret, k)
	}
	return ret
}

// keys of m, sorted ascending.
//
// Use this where iteration order must be deterministic.
func SortedKeys[K ~string, V any](m map[K]V) []K {
	ret := Keys(m)
	sort.Slice(ret, func(i, j int) bool { return ret[i] < ret[j] })
	return ret
}

// shallow copy of m.
func Copy[K comparable, V any](m map[K]V) map[K]V {
	ret := make(map[K]V, len(m))
	for k, v := range m {
		ret[k] = v
	}
	return ret
}

// merge src into dest (dest wins nothing; src overwrites), returning dest.
//
// dest may be nil; then a new map is allocated.
func Merge[K comparable, V any](dest, src map[K]V) map[K]V {
	if dest == nil {
		dest = make(map[K]V, len(src))
	}
	for k, v := range src {
		dest[k] = v
	}
	return dest
}
