// Package models defines the records the admin console reads from the remote API.
//
// # Records
//
//   - User: a tracked member, belongs to one group through GroupID
//   - Group: a named group of users, used to filter and label the roster
//   - PaymentRecord: the append-only payment history of one user
//   - PaymentEvent: one paid/unpaid write for a billing period (month key)
//
// # Identity
//
// The API returns identifiers either as "id" or as "_id" (and sometimes as
// numbers). Decoding normalizes both into the canonical ID field once, so the
// rest of the console never looks at the alternate field.
//
// # Lifecycle
//
// Records are snapshots: the console replaces them wholesale on every load and
// never mutates them. Local payment writes are tracked by the reconciler, not here.
package models
