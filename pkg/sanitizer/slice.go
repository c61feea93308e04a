package sanitizer

// NormalizeIDs normalizes every ID, drops the ones that normalize to empty
// and keeps only the first occurrence of a repeated ID. The result is never
// nil so it encodes as [] rather than null.
func NormalizeIDs(ids []string) []string {
	return normalizeEach(ids, NormalizeID)
}

func normalizeEach(items []string, normalize func(string) string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		v := normalize(item)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
