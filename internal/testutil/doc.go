// Package testutil provides shared fakes for queueboard tests.
//
// FakeStore is an in-memory implementation of the board store contract that
// records every call and can hold calls in flight, so tests can observe the
// view while writes are outstanding.
package testutil
