// Package dbutil adapts statements produced by gendry to postgres.
package dbutil

import (
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
)

var limitOffsetRe = regexp.MustCompile(`(?i)LIMIT\s+\?\s*,\s*\?`)

// Finalize rewrites "LIMIT ?,?" into "LIMIT ? OFFSET ?" (swapping the two args) and
// rebinds "?" placeholders to "$n".
func Finalize(query string, args []interface{}) (string, []interface{}) {
	loc := limitOffsetRe.FindStringIndex(query)
	if loc == nil {
		return sqlx.Rebind(sqlx.DOLLAR, query), args
	}
	pos := strings.Count(query[:loc[0]], "?")
	if pos+1 < len(args) {
		args[pos], args[pos+1] = args[pos+1], args[pos]
		query = limitOffsetRe.ReplaceAllString(query, "LIMIT ? OFFSET ?")
	}
	return sqlx.Rebind(sqlx.DOLLAR, query), args
}
