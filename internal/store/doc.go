// Package store provides persistent storage for greet-react using SQLite.
//
// # Data Model
//
// Two tables back the two interfaces:
//
//   - subscriptions: one row per team. The rules column holds the whole
//     team document as JSON, shaped {"<channel>": {"<user>": ["emoji", ...]}}.
//   - installations: one row per team with the bot token granted by the
//     OAuth install flow.
//
// # Consistency
//
// The team row is the unit of atomic update. AddEmojis and RemoveRule do a
// read-modify-write of that row under a per-team mutex and inside a SQL
// transaction, so concurrent watch commands for one team cannot lose each
// other's updates, and a failed write leaves the previous document intact.
// Teams never contend with each other on the mutex.
//
// Readers decode whatever row was last committed; they never observe a
// partially applied rule.
//
// # Legacy Records
//
// Documents written by the old service may contain nested emoji arrays or
// empty rule lists. Decoding flattens the arrays and prunes empty entries.
//
// # Testing
//
// Use NewMockStore() for unit tests. It encodes documents the same way the
// SQLite store does and can be told to fail writes with FailWrites.
//
// Use NewSQLiteStore(":memory:") for integration tests with real SQLite.
package store
