// Package render builds the markup fragments placed into tracker containers.
//
// A Renderer turns one parsed thread into a "tracker-item" fragment: the
// owed, completed or locked indicator, the linked title, the forum name with
// the description, and the last post line for threads that are still open.
// The fixed fragments Placeholder and SearchFailed stand in for pipeline
// conditions, and BoardMessage passes an unrecognized board message through
// escaped.
//
// Rendering has no side effects. Output depends only on the thread and the
// resolved tracker options.
package render
