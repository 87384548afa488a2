// Package taxonomy owns the leveled tag vocabulary: canonical level-1
// categories, level-2 topics grouped by category, and free-form level-3
// tags. It normalizes raw tag names coming out of the enricher into
// domain.Tag values ready for persistence, and provides the string
// similarity measure the taxonomy agent uses to spot near-duplicates.
package taxonomy

import (
	"regexp"
	"strings"

	"github.com/skimapp/skim-api/internal/domain"
)

// Canonical level-1 tags: the broad categories every story should fall under.
var level1Tags = map[string]bool{
	"Tech":     true,
	"Business": true,
	"Science":  true,
	"Society":  true,
}

// Canonical level-2 tags keyed by name, valued by their category.
var level2Categories = map[string]string{
	// Region
	"EU":          "Region",
	"USA":         "Region",
	"China":       "Region",
	"Canada":      "Region",
	"India":       "Region",
	"Germany":     "Region",
	"France":      "Region",
	"Netherlands": "Region",
	"UK":          "Region",
	// Tech Stacks
	"Python":     "Tech Stacks",
	"Rust":       "Tech Stacks",
	"Go":         "Tech Stacks",
	"JavaScript": "Tech Stacks",
	"Linux":      "Tech Stacks",
	// Tech Topics
	"AI/ML":       "Tech Topics",
	"Web":         "Tech Topics",
	"Systems":     "Tech Topics",
	"Security":    "Tech Topics",
	"Mobile":      "Tech Topics",
	"DevOps":      "Tech Topics",
	"Data":        "Tech Topics",
	"Cloud":       "Tech Topics",
	"Open Source": "Tech Topics",
	"Hardware":    "Tech Topics",
	// Business
	"Startups":  "Business",
	"Finance":   "Business",
	"Career":    "Business",
	"Products":  "Business",
	"Legal":     "Business",
	"Marketing": "Business",
	// Science
	"Research": "Science",
	"Space":    "Science",
	"Biology":  "Science",
	"Physics":  "Science",
}

// canonicalBySlug lets the agent find the canonical casing for a tag that
// was created with non-canonical capitalization.
var canonicalBySlug = func() map[string]string {
	m := make(map[string]string, len(level1Tags)+len(level2Categories))
	for name := range level1Tags {
		m[NormalizeSlug(name)] = name
	}
	for name := range level2Categories {
		m[NormalizeSlug(name)] = name
	}
	return m
}()

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeSlug converts a tag name to its normalized slug form.
func NormalizeSlug(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugPattern.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// LevelFor determines the taxonomy level of a tag name. Unknown names
// default to level 3, the free-form tier.
func LevelFor(name string) int {
	if level1Tags[name] {
		return 1
	}
	if _, ok := level2Categories[name]; ok {
		return 2
	}
	return 3
}

// CategoryFor returns the category of a canonical level-2 tag, or "" for
// any other name.
func CategoryFor(name string) string {
	return level2Categories[name]
}

// CanonicalName returns the canonical spelling for a slug when the slug
// belongs to the known level-1/level-2 vocabulary.
func CanonicalName(slug string) (string, bool) {
	name, ok := canonicalBySlug[slug]
	return name, ok
}

// Resolve turns raw tag names from the enricher into Tag values with
// slug, level, and category filled in. Duplicate slugs and empty names
// are dropped, preserving first-seen order.
func Resolve(names []string) []*domain.Tag {
	var tags []*domain.Tag
	seen := make(map[string]bool, len(names))

	for _, name := range names {
		name = strings.TrimSpace(name)
		slug := NormalizeSlug(name)
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true

		// Snap known slugs to their canonical spelling so "ai/ml" and
		// "AI/ML" converge on one tag.
		if canonical, ok := CanonicalName(slug); ok {
			name = canonical
		}

		tags = append(tags, &domain.Tag{
			Name:     name,
			Slug:     slug,
			Level:    LevelFor(name),
			Category: CategoryFor(name),
		})
	}

	return tags
}
