// Package main provides the entry point for the pagetrail CLI.
//
// pagetrail records how pages are visited in a browser: one record per
// document with its navigation lineage, foreground time and interactions.
// Events arrive from the browser extension over native messaging or local
// HTTP and are delivered to a collection server or a local SQLite archive.
//
// Usage:
//
//	pagetrail run
//	pagetrail host
//	pagetrail status --format markdown
//
// See --help for all available options.
package main

func main() {
	Execute()
}
