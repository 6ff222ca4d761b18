package database

import (
	"fmt"
	"strings"
)

// ConstructDatabaseURL builds the DSN handed to pgxpool and golang-migrate from
// DATABASE_URL and DATABASE_NAME. Query options on the base survive, and
// sslmode=disable is appended only when the base does not choose one; local
// compose and the test containers run Postgres without TLS.
func ConstructDatabaseURL(baseURL, databaseName string) string {
	if databaseName == "" {
		return baseURL
	}

	base, query, hasQuery := strings.Cut(strings.TrimRight(baseURL, "/"), "?")
	base = strings.TrimRight(base, "/")

	dsn := base + "/" + databaseName
	if hasQuery {
		dsn += "?" + query
	}

	if strings.Contains(query, "sslmode=") {
		return dsn
	}
	if hasQuery {
		return fmt.Sprintf("%s&sslmode=disable", dsn)
	}
	return fmt.Sprintf("%s?sslmode=disable", dsn)
}
