package permissions

import (
	"regexp"
	"strings"
)

// compileGlob turns a syft.pub.yaml glob pattern into a regular expression
// anchored against a path relative to the policy file's own directory.
//
// "*" matches any run of characters within a single path segment.
// "**" matches zero or more whole path segments (including none, so a
// pattern of exactly "**" matches every path below the policy file).
// Every other rune is matched literally.
func compileGlob(pattern string) (*regexp.Regexp, error) {
	segments := strings.Split(strings.Trim(pattern, "/"), "/")
	n := len(segments)

	fragments := make([]string, n)
	for i, seg := range segments {
		switch {
		case seg != "**":
			fragments[i] = translateSegment(seg)
		case n == 1:
			fragments[i] = ".*"
		case i == 0:
			fragments[i] = "(?:.*/)?"
		case i == n-1:
			fragments[i] = "(?:/.*)?"
		default:
			fragments[i] = "/(?:.*/)?"
		}
	}

	var out strings.Builder
	out.WriteString("^")
	out.WriteString(fragments[0])
	for i := 1; i < n; i++ {
		prevDS := segments[i-1] == "**"
		curDS := segments[i] == "**"
		if !prevDS && !curDS {
			out.WriteString("/")
		}
		out.WriteString(fragments[i])
	}
	out.WriteString("$")
	return regexp.Compile(out.String())
}

// translateSegment escapes regex metacharacters in a single glob segment,
// except for "*", which becomes "[^/]*".
func translateSegment(seg string) string {
	var out strings.Builder
	for _, r := range seg {
		if r == '*' {
			out.WriteString("[^/]*")
			continue
		}
		out.WriteString(regexp.QuoteMeta(string(r)))
	}
	return out.String()
}

// matchGlob reports whether relPath (forward-slash separated, no leading
// slash) matches pattern.
func matchGlob(pattern, relPath string) (bool, error) {
	re, err := compileGlob(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(strings.Trim(relPath, "/")), nil
}
