// Package pipeline runs the tracking steps for a user in sequence.
//
// A run moves through four steps: the search crawl, the newest-first sort,
// placement of each fragment into its container, and backfilling empty
// containers with a placeholder. Each step is a Step that receives the
// current run and can modify it.
//
// Several users can be tracked at once with BatchProcessor, which bounds
// concurrency using errgroup. A single user's run is always sequential.
package pipeline
