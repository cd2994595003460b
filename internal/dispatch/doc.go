// Package dispatch turns user intents into optimistic view patches, locks
// and store writes.
//
// Every intent patches the engine's view before any store call starts, so
// the UI never waits on the network. Text edits are debounced per slot;
// group operations (check, uncheck, clear row) write their slots in
// parallel and report failures without rolling back the rest. Successful
// writes are published on the broadcast channel stamped with the engine's
// origin.
package dispatch
