// Package protocol owns the engine wire contract: the tagged message envelope,
// its closed vocabulary and the JSON codec that sits above framing.
//
// Ownership boundary:
// - envelope encode/decode
// - message kinds and their parameter shapes
// - codec error sentinels
//
// Byte-level framing lives in protocol/frame; request sequencing lives in protocol/session.
package protocol
