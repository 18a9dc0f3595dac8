// Package services defines shared utilities consumed by the session
// controller, the daemon and the record store.
//
// It provides context helpers that stamp capture action IDs and request
// correlation IDs for logging, plus structured error markers and the Wrap
// helper used to classify failures in RPC replies.
package services
