// Package messaging sends user turns to the chat endpoint and renders the
// exchange on the mounted surface.
//
// # Overview
//
// A call to Pipeline.Send does its visible work immediately: the user's
// message is echoed, the input and any staged attachment are cleared, and a
// typing indicator appears. The request then runs on its own goroutine and
// its result is handed back through the Dispatcher, which removes the
// indicator and appends either the reply or the apology string.
//
// Turns with an attachment are sent as multipart/form-data with message,
// file and public_key fields; all other turns are a JSON object with
// message and public_key. Every request carries an Idempotency-Key header
// equal to the echoed message id.
//
// # Ordering
//
// Echoes appear in the order Send was called. Replies appear in the order
// their requests complete, so two overlapping turns may be answered out of
// order.
package messaging
