// Package database provides the embedded SQLite archive for pagetrail.
//
// Store implements the backend interface locally, so the daemon can run
// without a collection server. It keeps:
//   - registered browsers and daemon sessions
//   - activity records (one row per page, replaced on every flush)
//   - captured pages and capture failures
//   - browser history items with their visits
//
// SQLite is accessed through modernc.org/sqlite, which needs no cgo.
package database
