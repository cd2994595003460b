// Package policy plans the checkbox and reorder rules for one side of the
// board.
//
// At most one row per side is checked. Checking a row unchecks every other
// checked slot on that side. Unchecking a row moves it below the populated
// rows, so the checked row is always the one being served and finished rows
// drop to the end of the queue.
//
// Planners are pure: they take a view snapshot and return the per-slot
// changes. The dispatcher applies the plan optimistically and writes it.
package policy
