package lrrclient

import (
	"strconv"
	"strings"
)

// SourceFromTags returns the value of a "source:" tag in a comma-separated
// LRR tag string, matching get_source_from_tags. Returns "" if absent.
func SourceFromTags(tags string) string {
	for _, tag := range strings.Split(tags, ",") {
		tag = strings.TrimSpace(tag)
		if strings.HasPrefix(tag, "source:") {
			return tag[len("source:"):]
		}
	}
	return ""
}

// SplitTags splits a comma-separated LRR tag string into trimmed tags,
// matching get_keep_reasons's `[s.strip() for s in tags.split(",")]`.
func SplitTags(tags string) []string {
	parts := strings.Split(tags, ",")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}

// HasTag reports whether tags contains want exactly (after trimming).
func HasTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}

// NhentaiSourceID returns the trailing numeric id of a "source:nhentai.net"
// tag, or -1 if tags has no such tag or the trailing segment isn't
// numeric, matching _get_source.
func NhentaiSourceID(tags []string) int64 {
	for _, tag := range tags {
		if !strings.HasPrefix(tag, "source:nhentai.net") {
			continue
		}
		segments := strings.Split(tag, "/")
		id, err := strconv.ParseInt(segments[len(segments)-1], 10, 64)
		if err != nil {
			return -1
		}
		return id
	}
	return -1
}
