// Package codec is the CBOR encoding used for relay change-feed frames.
//
// Encoding follows Core Deterministic Encoding so identical events produce
// identical bytes. Struct fields fall back to their json tags, which lets the
// domain types travel over the feed and the JSON HTTP API unchanged.
package codec
