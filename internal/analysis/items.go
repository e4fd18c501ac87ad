package analysis

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"videosafety-worker/internal/models"
	"videosafety-worker/internal/textutil"
)

// MaxListItems caps concerns, positive aspects and key moments in a stored result.
const MaxListItems = 10

// CleanRules are the thresholds used when pruning concerns and positive aspects.
type CleanRules struct {
	// MinItemLength drops items whose full text is shorter than this.
	MinItemLength int
	// MinKeyLength drops items whose description, once the timestamp is stripped, is shorter than this.
	MinKeyLength int
}

// DefaultCleanRules drop truncated fragments the model tends to emit at the end of long lists.
var DefaultCleanRules = CleanRules{MinItemLength: 20, MinKeyLength: 10}

var trailingTimestamp = regexp.MustCompile(`\s*at\s+\d{1,2}:\d{2}(?::\d{2})?\s*$`)

// ConvertItems renders structured items as "description at timestamp" strings.
// Items without a description are skipped.
func ConvertItems(items []models.TimedItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		desc := strings.TrimSpace(it.Description)
		ts := strings.TrimSpace(it.Timestamp)
		switch {
		case desc != "" && ts != "":
			out = append(out, fmt.Sprintf("%s at %s", desc, ts))
		case desc != "":
			out = append(out, desc)
		}
	}
	return out
}

// CleanItems applies DefaultCleanRules.
func CleanItems(items []string) []string {
	return CleanItemsWith(items, DefaultCleanRules)
}

// CleanItemsWith drops short items, items without an "at M:SS" timestamp, and items
// whose description repeats an earlier one at a different time. Order is preserved.
func CleanItemsWith(items []string, rules CleanRules) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || len(item) < rules.MinItemLength {
			continue
		}
		if !textutil.HasTimestamp(item) {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(trailingTimestamp.ReplaceAllString(item, "")))
		if len(key) < rules.MinKeyLength {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

// SortByTimestamp orders items by their "at M:SS" time. Items without one sort as 0.
func SortByTimestamp(items []string) []string {
	sorted := append([]string(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return textutil.ExtractTimestamp(sorted[i]) < textutil.ExtractTimestamp(sorted[j])
	})
	return sorted
}

// finalizeItems converts, sorts, cleans and caps one list.
func finalizeItems(items []models.TimedItem) []string {
	return capStrings(CleanItems(SortByTimestamp(ConvertItems(items))), MaxListItems)
}

func sortMoments(moments []models.KeyMoment) []models.KeyMoment {
	sorted := append([]models.KeyMoment{}, moments...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TimestampSeconds < sorted[j].TimestampSeconds
	})
	if len(sorted) > MaxListItems {
		sorted = sorted[:MaxListItems]
	}
	return sorted
}

func capStrings(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
