// Package broadcast is the pub/sub transport between board clients.
//
// Every implementation carries the same two events on one named channel:
//
//	entry-updated {slot}     one slot changed
//	sync-all      {slots[]}  full-grid resync
//
// Delivery is best-effort with no ordering guarantee. Publishers stamp each
// event with their origin ID so that subscribers can drop their own echoes.
//
// Implementations:
//   - Memory: in-process hub, synchronous delivery (tests, single-process serve)
//   - Redis: go-redis PUBLISH/SUBSCRIBE
//   - Relay: HTTP handler bridging WebSocket clients onto any Channel
//   - WebSocket: client side of Relay with reconnect/backoff
package broadcast
