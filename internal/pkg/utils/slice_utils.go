package utils

// AppendUnique appends item to items unless it is already present.
// The second result reports whether items changed.
func AppendUnique(items []string, item string) ([]string, bool) {
	for _, existing := range items {
		if existing == item {
			return items, false
		}
	}
	return append(items, item), true
}

// RemoveString returns items without any occurrence of item, preserving order.
func RemoveString(items []string, item string) []string {
	out := make([]string, 0, len(items))
	for _, existing := range items {
		if existing != item {
			out = append(out, existing)
		}
	}
	return out
}
