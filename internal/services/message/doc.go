// Package message keeps one room's decrypted timeline in sync with the relay
// and sends new messages into it.
//
// A Session moves through Idle, Loading, Live and Closed. Open subscribes to
// the room's change feed first and buffers what arrives, then loads the
// roster, derives the secret table, decrypts the stored history, and finally
// drains the buffer before going Live. Every message is de-duplicated by id,
// so an insert seen both in history and on the feed appears once.
//
// Sending seals one copy of the plaintext per member (the sender included)
// and inserts it once. Nothing is rendered until the relay echoes the insert
// back on the feed.
//
// A message that cannot be decrypted becomes a timeline entry with a sentinel
// text and its failure attached; it never aborts loading or the feed.
package message
