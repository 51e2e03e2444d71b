package dbutil

import (
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
)

var limitRegex = regexp.MustCompile(`(?i)LIMIT\s+\?\s*,\s*\?`)

// Finalize turns a gendry query (backtick identifiers, '?' placeholders,
// "LIMIT ?, ?") into its postgres form with $n placeholders.
func Finalize(query string, args []interface{}) (string, []interface{}) {
	query = strings.ReplaceAll(query, "`", `"`)
	if loc := limitRegex.FindStringIndex(query); loc != nil {
		n := strings.Count(query[:loc[0]], "?")
		if n+1 < len(args) {
			args[n], args[n+1] = args[n+1], args[n]
			query = limitRegex.ReplaceAllString(query, "LIMIT ? OFFSET ?")
		}
	}
	return sqlx.Rebind(sqlx.DOLLAR, query), args
}
