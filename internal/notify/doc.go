// Package notify provides a small synchronous publish/subscribe hub.
//
// Subscribers are invoked in registration order on the publishing
// goroutine. A subscriber must not block.
package notify
