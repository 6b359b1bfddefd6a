// Package pollingstation implements the polling-station core inside the
// electoral-core context.
//
// The module owns the credential registry, the authorization ledger, receipt
// allocation, ballot casting, adjudication of observed ballots and the
// tally. Every cross-record rule is enforced by storage constraints inside a
// single transaction, exposed through ports.UnitOfWork. Ballots never carry
// the credential that cast them.
package pollingstation
