// Package model defines the data structures shared across pagetrail.
//
// This package contains the following main types:
//   - Page: one browser-tab-visible document instance, from load to unload
//   - PageRecord: the JSON snapshot of a Page sent to the backend
//   - Annotation: request/response fields waiting for their Page to exist
//   - FetchedPage: the payload produced by a page capture
//   - HistoryItem: a browser history entry with its visits
//   - Status: what the daemon reports about its in-memory state
//
// Types live in their own package so that the tracker, the backends and the
// report writers can share them without import cycles.
package model
