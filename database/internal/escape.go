// Package internal holds SQL helpers shared by the backend packages.
package internal

import "strings"

var likeEscaper = strings.NewReplacer(
	`\`, `\\`,
	`%`, `\%`,
	`_`, `\_`,
)

// EscapeLikePattern escapes LIKE wildcards in a user-supplied string so it
// matches literally. Queries using the result must specify ESCAPE '\'.
func EscapeLikePattern(s string) string {
	return likeEscaper.Replace(s)
}
