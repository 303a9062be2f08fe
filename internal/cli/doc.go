// Package cli wires the labeler's components into cobra commands.
//
// The long-running modes are poll (reconcile against the photo index on an
// interval) and watch (react to files written under a directory). scan and
// label are single runs over a directory or a file, inspect prints what
// would be derived from a file without contacting the index, and the ledger
// commands maintain the local outcome ledger.
package cli
