// Package session drives one engine connection: handshake, archive open, listing
// transfer, extraction streams and shutdown.
//
// Ownership boundary:
// - request/reply sequencing over a single framed transport
// - error classification (transport, handshake, engine rejection, protocol violation)
// - progress streaming through progress.Relay
//
// Wire shapes live in internal/protocol; byte framing in internal/protocol/frame.
package session
