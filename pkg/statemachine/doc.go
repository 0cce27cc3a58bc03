// Package statemachine provides immutable, generic transition tables for
// records whose state lives in storage.
//
// A Table holds no current state. Callers load a record, ask the table for the
// next state with Fire, and persist the result themselves. This keeps a single
// table safe to share between goroutines and lets the storage layer decide how
// the write is made atomic.
//
// # Usage
//
//	type Status string
//	type Event string
//
//	const (
//	    Open   Status = "open"
//	    Closed Status = "closed"
//	    End    Event  = "end"
//	)
//
//	table := statemachine.MustNew(
//	    statemachine.WithTransition(Open, Closed, End),
//	    statemachine.WithTransition(Closed, Closed, End),
//	)
//
//	next, err := table.Fire(ctx, Open, End, nil)
//
// Several transitions may share a from/event pair; the first one whose guards
// all pass is taken. WithAnyTransition declares transitions valid from every
// state, consulted after the explicit ones.
//
// # Error Handling
//
//	if statemachine.IsNoTransition(err) { /* event not declared for state */ }
//	if statemachine.IsRejected(err)     { /* guards vetoed every candidate */ }
package statemachine
