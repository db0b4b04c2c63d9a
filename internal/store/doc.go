// Package store provides persistent storage for the support backend using SQLite.
//
// # Data Models
//
//   - Conversation: one per participant (phone number), status open/closed
//   - Message: inbound or outbound message belonging to a conversation
//
// The UNIQUE constraint on conversations.participant is what makes the
// find-or-create flow in the conversation package safe under concurrent
// first contacts: the losing insert gets ErrDuplicateConversation and
// re-reads the winner's row.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Timestamps are stored as RFC3339 UTC text.
//
// # Error Handling
//
//   - ErrNotFound: requested entity does not exist
//   - ErrDuplicateConversation: participant already has a conversation
//
// All methods accept context.Context for cancellation support.
// Use NewSQLiteStore(":memory:") for tests.
package store
