// Package logs reads the daemon log file for the CLI.
//
// Last returns the final lines of the current log and Since resumes from a
// byte offset, optionally polling until new lines arrive. The daemon keeps
// scanmatchd.log pointed at the log of its current run, so Since restarts
// from the top when the file shrinks underneath it.
package logs
