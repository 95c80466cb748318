// Package relayserver is the persistence and change-feed service that
// roomseal clients talk to.
//
// It stores rooms, memberships and sealed messages in SQLite and pushes
// insert notifications to connected clients over WebSocket. It never sees
// plaintext or private keys; it is trusted to deliver, not to keep secrets.
//
// HTTP API
//
//	POST /rooms                         create a room; 409 when the code is taken
//	GET  /rooms?code=X                  look up a room by code; 404 when absent
//	GET  /rooms?user=U                  rooms U is a member of
//	GET  /rooms/{id}/members            roster ordered by join time
//	POST /rooms/{id}/members            join; 409 when already a member
//	PUT  /rooms/{id}/members/{user}     upsert the member's public key
//	DELETE /rooms/{id}/members/{user}   leave; 204 whether or not U was a member
//	GET  /rooms/{id}/messages           messages ordered by created_at
//	POST /rooms/{id}/messages           insert; id and created_at are assigned here
//	GET  /rooms/{id}/feed               WebSocket change feed, one CBOR FeedEvent per frame
//
// Requests and responses are JSON. Errors carry {"error": "..."}.
package relayserver
