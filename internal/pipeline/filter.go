package pipeline

// FilterSeen removes URLs already present in earlier runs. Order is
// preserved and the input slice is not modified. Applying it twice with the
// same history yields the same result.
func FilterSeen(urls []string, seen map[string]bool) []string {
	var fresh []string
	for _, u := range urls {
		if seen[u] {
			continue
		}
		fresh = append(fresh, u)
	}
	return fresh
}
