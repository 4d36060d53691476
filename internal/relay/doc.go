// Package relay moves document updates and presence between replicas over
// websockets.
//
// A Server accepts connections on /ws/{doc}. All connection state lives in
// a Hub whose Run loop is the only goroutine that touches it; websocket
// readers and broker subscriptions feed the loop through an unbounded
// queue, and each connection has its own writer goroutine.
//
// Updates are persisted to an OpLog before they are published to the
// Broker. Every hub subscribed to a document delivers broker traffic to its
// local connections except the one that sent it, so several relay
// processes can share a document through Redis or NATS. Presence is relayed
// but never persisted.
//
// Client is the other end: it binds a document.Document and a
// presence.Awareness to a relay URL.
package relay
