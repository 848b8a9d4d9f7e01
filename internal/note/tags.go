package note

import (
	"context"
	"strings"

	"github.com/goccy/go-json"

	"notesy/internal/logging"
)

// ParseTags splits comma separated text, trimming entries and dropping empty ones.
// Order and duplicates are kept.
func ParseTags(s string) []string {
	out := []string{}
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, t)
	}
	return out
}

// ParseKeepList decodes the JSON array of image URLs an editor wants to keep. A missing or
// malformed value keeps nothing; the malformed case is logged.
func ParseKeepList(ctx context.Context, s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{}
	}
	var urls []string
	if err := json.Unmarshal([]byte(s), &urls); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("malformed keepExistingImages, keeping no images")
		return []string{}
	}
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// retain returns the entries of keep that current contains, in keep order. URLs the note does
// not hold are dropped, and a URL listed more than once is kept only at its first position.
func retain(keep, current []string) []string {
	have := make(map[string]struct{}, len(current))
	for _, u := range current {
		have[u] = struct{}{}
	}
	out := make([]string, 0, len(keep))
	for _, u := range keep {
		if _, ok := have[u]; !ok {
			continue
		}
		delete(have, u)
		out = append(out, u)
	}
	return out
}

// dropped returns the entries of before missing from after.
func dropped(before, after []string) []string {
	keep := make(map[string]struct{}, len(after))
	for _, u := range after {
		keep[u] = struct{}{}
	}
	var out []string
	for _, u := range before {
		if _, ok := keep[u]; !ok {
			out = append(out, u)
		}
	}
	return out
}
