// Package session drives one scanner through open, capture and close.
//
// A Controller owns the session state machine. User requests, backend
// callbacks and timers are all posted to a single loop goroutine, which
// validates each transition against the predecessor table before entering
// the target state. Completed actions hand their images to a finisher that
// runs off the loop and reports through the Presenter.
package session
