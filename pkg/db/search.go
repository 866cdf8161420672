package db

import "strings"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern turns free text into a lower-cased LIKE pattern matching
// any value that contains it. Use with `LOWER(col) LIKE ? ESCAPE '\'`.
func ContainsPattern(query string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(query))) + "%"
}
