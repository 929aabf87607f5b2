//go:build cgo

package store

// The CGO driver registers as "sqlite3". It is selected with
// database.driver: sqlite3; the default stays the pure-Go driver.
import _ "github.com/mattn/go-sqlite3"
