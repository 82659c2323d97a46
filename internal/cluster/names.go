package cluster

import (
	"fmt"
	"regexp"
)

// kindPattern constrains kind names to characters that are safe in a
// hostname fragment.
var kindPattern = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

// validKind reports whether kind may be used as a group name.
func validKind(kind string) bool {
	return kindPattern.MatchString(kind)
}

// nodeName builds the default name for the ordinal-th node of a kind.
// Pattern: ${kind}${ordinal} zero-padded to three digits, e.g. worker001.
func nodeName(kind string, ordinal int) string {
	return fmt.Sprintf("%s%03d", kind, ordinal)
}
