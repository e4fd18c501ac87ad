package textutil

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	videoIDRe   = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	pathIDRe    = regexp.MustCompile(`/(?:embed|shorts|v|live)/([A-Za-z0-9_-]{11})`)
	youtubeHost = map[string]bool{
		"youtube.com":       true,
		"www.youtube.com":   true,
		"m.youtube.com":     true,
		"music.youtube.com": true,
		"youtu.be":          true,
		"www.youtu.be":      true,
	}
)

// ExtractVideoID returns the 11 character video id of a YouTube watch, short,
// embed or youtu.be URL. A bare id is accepted as-is.
func ExtractVideoID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if videoIDRe.MatchString(raw) {
		return raw, true
	}
	u, err := url.Parse(raw)
	if err != nil || !youtubeHost[strings.ToLower(u.Host)] {
		return "", false
	}
	if strings.HasSuffix(strings.ToLower(u.Host), "youtu.be") {
		id := strings.Trim(u.Path, "/")
		if i := strings.Index(id, "/"); i >= 0 {
			id = id[:i]
		}
		if videoIDRe.MatchString(id) {
			return id, true
		}
		return "", false
	}
	if id := u.Query().Get("v"); videoIDRe.MatchString(id) {
		return id, true
	}
	if m := pathIDRe.FindStringSubmatch(u.Path); m != nil {
		return m[1], true
	}
	return "", false
}
