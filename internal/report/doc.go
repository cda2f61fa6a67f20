// Package report renders the tracker status for the status command and the
// requestStatus control message.
//
// A Report combines the current and pending page records with history sync
// state and recently reported faults. Writers render it as plain text, JSON
// or Markdown, and implement the same Writer interface so they can be
// combined with MultiWriter.
package report
