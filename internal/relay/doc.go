// Package relay provides an HTTP implementation of the domain.RelayClient
// interface used by roomseal.
//
// The relay is the persistence and change-feed service: it stores rooms,
// memberships and sealed messages and pushes insert notifications. This
// package offers a concrete client for it.
//
// Supported operations include:
//   - Creating rooms and looking them up by code or member.
//   - Listing, joining and publishing room memberships.
//   - Listing and inserting sealed messages.
//   - Subscribing to a room's change feed over WebSocket.
//
// All requests are JSON over HTTP and accept a context for cancellation and
// deadlines. Transport failures and timeouts are reported as
// domain.ErrUnreachable; 404 and 409 responses map to the matching domain
// sentinel errors, and other non-2xx statuses are returned as errors with the
// method, path and status text to aid diagnostics.
package relay
