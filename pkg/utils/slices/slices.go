package slices

// map each element in sli with mapper.
//
// The element indexed N in the returned slice is mapper(sli[N]).
func Map[T any, R any](sli []T, mapper func(v T) R) []R {
	ret := make([]R, len(sli))
	for nth, v := range sli {
		ret[nth] = mapper(v)
	}
	return ret
}

// Map over sli with mapper which can fail.
//
// If mapper causes error, return (nil, error) and stop there.
func MapUntilError[T any, R any](sli []T, mapper func(v T) (R, error)) ([]R, error) {
	ret := make([]R, len(sli))
	for nth, v := range sli {
		r, err := mapper(v)
		if err != nil {
			return nil, err
		}
		ret[nth] = r
	}
	return ret, nil
}

// pick elements satisfying predicate, keeping order.
func Filter[T any](sli []T, predicate func(v T) bool) []T {
	ret := []T{}
	for _, v := range sli {
		if predicate(v) {
			ret = append(ret, v)
		}
	}
	return ret
}

// true if any element satisfies predicate.
func Any[T any](sli []T, predicate func(v T) bool) bool {
	for _, v := range sli {
		if predicate(v) {
			return true
		}
	}
	return false
}

// index of the first element equal to needle, or -1.
func IndexOf[T comparable](sli []T, needle T) int {
	for nth, v := range sli {
		if v == needle {
			return nth
		}
	}
	return -1
}

// convert slice to map.
//
// If keys given with getkey collide, a value coming later takes over previous.
func ToMap[T any, K comparable](sli []T, getkey func(v T) K) map[K]T {
	m := map[K]T{}
	for _, v := range sli {
		m[getkey(v)] = v
	}
	return m
}
