package task

import (
	"sort"
	"strings"
)

// ParseTags extracts #-prefixed words from text. Tags are lowercased,
// stripped of the leading '#', and de-duplicated in first-seen order.
func ParseTags(text string) []string {
	tags := make([]string, 0)
	seen := make(map[string]bool)
	for _, word := range strings.Fields(text) {
		if !strings.HasPrefix(word, "#") || len(word) < 2 {
			continue
		}
		tag := strings.ToLower(word[1:])
		if seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}

// NormalizeTags lowercases, strips '#', drops empties, and de-duplicates tags.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool)
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

// FormatTags renders tags as space separated #tag tokens.
func FormatTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	parts := make([]string, 0, len(tags))
	for _, tag := range tags {
		parts = append(parts, "#"+tag)
	}
	return strings.Join(parts, " ")
}

// SortedTags returns a sorted copy of tags.
func SortedTags(tags []string) []string {
	out := make([]string, len(tags))
	copy(out, tags)
	sort.Strings(out)
	return out
}

// TagCatalog returns the sorted, de-duplicated union of the tasks' tags.
func TagCatalog(tasks []Task) []string {
	seen := make(map[string]bool)
	catalog := make([]string, 0)
	for _, t := range tasks {
		for _, tag := range t.Tags {
			if seen[tag] {
				continue
			}
			seen[tag] = true
			catalog = append(catalog, tag)
		}
	}
	sort.Strings(catalog)
	return catalog
}
