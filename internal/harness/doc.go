// Package harness exercises a deployed device identity over the network.
//
// The Responder is a WebSocket echo server: every text message M received
// on a connection is answered with "Echo: " + M on the same connection,
// each connection served by its own goroutine. The Requester performs a
// single connect/send/receive/close exchange against a device and reports
// either the reply or one *ConnectionError.
package harness
