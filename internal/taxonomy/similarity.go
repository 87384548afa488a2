package taxonomy

import "strings"

// Similarity scores how alike two tag names are on a 0.0 to 1.0 scale,
// comparing their normalized slugs. It is based on edit distance, so
// "Machine Learning" and "machine-learning" score 1.0 and small typos
// score just below it.
func Similarity(a, b string) float64 {
	sa := NormalizeSlug(a)
	sb := NormalizeSlug(b)
	if sa == sb {
		return 1.0
	}
	if sa == "" || sb == "" {
		return 0.0
	}
	longest := max(len(sa), len(sb))
	return 1.0 - float64(editDistance(sa, sb))/float64(longest)
}

// IsSubstring reports whether one slug contains the other on whole
// component boundaries, which catches pairs like "ai" and "ai-ml" that
// edit distance misses. Containment inside a component ("go" inside
// "django") does not count.
func IsSubstring(a, b string) bool {
	sa := NormalizeSlug(a)
	sb := NormalizeSlug(b)
	if sa == "" || sb == "" {
		return false
	}
	return containsComponent(sa, sb) || containsComponent(sb, sa)
}

func containsComponent(slug, needle string) bool {
	if slug == needle {
		return true
	}
	return strings.HasPrefix(slug, needle+"-") ||
		strings.HasSuffix(slug, "-"+needle) ||
		strings.Contains(slug, "-"+needle+"-")
}

// editDistance computes the Levenshtein distance between two strings
// using two rolling rows.
func editDistance(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
