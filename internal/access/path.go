package access

import (
	"fmt"
	gopath "path"
	"strings"
)

// Permission paths follow the Unix hierarchy: absolute, forward-slash
// separated, no trailing slash. The root is "/".
const PathSep = "/"

// NormPath canonicalizes a resource path into the form permission records
// are stored under. Backslashes are treated as separators, duplicate
// separators collapse, and "." / ".." segments resolve (".." is clamped at
// the root). Relative and empty paths fail with ErrValidation.
func NormPath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("%w: empty path", ErrValidation)
	}
	p = strings.ReplaceAll(p, "\\", PathSep)
	if !strings.HasPrefix(p, PathSep) {
		return "", fmt.Errorf("%w: path %q is not absolute", ErrValidation, p)
	}
	return gopath.Clean(p), nil
}

// PathSegments splits a normalized path into its segments. The root path
// has no segments.
func PathSegments(p string) []string {
	trimmed := strings.Trim(p, PathSep)
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, PathSep)
}

// PathDepth is the number of segments in a normalized path. The root has
// depth zero; deeper paths make for more specific grants.
func PathDepth(p string) int {
	return len(PathSegments(p))
}

// JoinPath joins segments into an absolute normalized path.
func JoinPath(segments ...string) string {
	return gopath.Clean(PathSep + strings.Join(segments, PathSep))
}
