// Package pipeline runs page capture jobs as a sequence of steps.
//
// A capture job waits for the page to settle, checks that the tab is still
// showing the same URL, scrapes the document, lets the caller attribute the
// result to a tracked page, and submits it. Each stage is a Step that
// receives the Job and may fill in more of it.
//
// Runner executes jobs concurrently with a bounded number of workers using
// errgroup. Jobs are never cancelled because a newer navigation superseded
// them; they run to completion and the attribution step decides whether the
// result still belongs to a page.
package pipeline
