package mysql

import "strings"

// History rows are keyed by user id and the column is part of every query's
// WHERE clause, so an empty caller id is stored as "-" rather than as an
// empty string or NULL.
func userKey(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
