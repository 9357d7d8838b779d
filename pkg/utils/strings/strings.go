package strings

import "strings"

// SplitIfNotEmpty splits s by sep, or returns nil for an empty s.
//
// strings.Split("", ",") is []string{""}; query-parameter parsing wants
// "no values" instead.
func SplitIfNotEmpty(s string, sep string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, sep)
}
