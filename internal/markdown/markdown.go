// Package markdown provides the small amount of Markdown awareness Perch
// needs: finding which stored images a post body still references.
package markdown

import "regexp"

// Matches the key segment of Markdown image references pointing at the local
// image proxy, e.g. ![shot](/images/abc-photo.png).
var imageRefRe = regexp.MustCompile(`!\[[^\]]*\]\(/images/([^)\s]+)\)`)

// ImageKeys returns the stored-image keys referenced by body, in order of
// appearance, de-duplicated.
func ImageKeys(body string) []string {
	matches := imageRefRe.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	var keys []string
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		keys = append(keys, m[1])
	}
	return keys
}

// ImageRef renders a Markdown image reference for a stored key.
func ImageRef(alt, key string) string {
	return "![" + alt + "](/images/" + key + ")"
}
