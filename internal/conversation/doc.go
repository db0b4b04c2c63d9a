// Package conversation provides the find-or-create and message-append
// flows that sit between the HTTP handlers and the store.
//
// # Service
//
//	svc := conversation.New(store, logger)
//
// Key operations:
//
//   - Ensure(ctx, participant): return the participant's conversation,
//     creating an open one on first contact
//   - Record(ctx, req): append an inbound or outbound message and bump
//     the conversation's updated_at
//   - List(ctx) / History(ctx, id): read-throughs for the API layer
//
// # Find-or-create under concurrency
//
// Ensure is lookup-then-insert. Two concurrent first contacts for the
// same participant can both miss the lookup; the store's UNIQUE
// constraint on participant rejects the second insert with
// ErrDuplicateConversation, and Ensure recovers by re-reading the row
// the winner created. Callers always get exactly one conversation per
// participant.
package conversation
