package combination

// Cartesian generates the cartesian product of basis, choosing one item per key.
//
// keys fixes both which dimensions take part and the enumeration order:
// the last key varies fastest, like an odometer. Keys missing from basis or
// bound to an empty list make the whole product empty.
//
// For example,
//
//	Cartesian([]string{"lr", "n"}, map[string][]float64{
//		"lr": {0.01, 0.1},
//		"n":  {50, 100},
//	})
//
// generates
//
//	[]map[string]float64{
//		{"lr": 0.01, "n": 50},
//		{"lr": 0.01, "n": 100},
//		{"lr": 0.1, "n": 50},
//		{"lr": 0.1, "n": 100},
//	}
func Cartesian[K comparable, V any](keys []K, basis map[K][]V) []map[K]V {
	if len(keys) == 0 {
		return []map[K]V{}
	}

	total := 1
	for _, k := range keys {
		size := len(basis[k])
		if size == 0 {
			// a zero-width dimension empties the whole space.
			return []map[K]V{}
		}
		total *= size
	}

	ret := make([]map[K]V, 0, total)
	odometer := make([]int, len(keys))
	for {
		item := make(map[K]V, len(keys))
		for nth, k := range keys {
			item[k] = basis[k][odometer[nth]]
		}
		ret = append(ret, item)

		digit := len(keys) - 1
		for ; 0 <= digit; digit-- {
			odometer[digit] += 1
			if odometer[digit] < len(basis[keys[digit]]) {
				break
			}
			odometer[digit] = 0
		}
		if digit < 0 {
			return ret
		}
	}
}
