// Package recordaccess lets CLI commands read and maintain the enrollment
// database through the running daemon when it is reachable, and directly
// through the SQLite store otherwise.
package recordaccess
