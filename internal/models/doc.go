// Package models defines the persisted records of tabsplit that are not
// produced by the allocation engine itself.
//
// # Models
//
//   - SessionSummary: one row of the session history listing
//   - Group: a recurring set of participants that owns sessions
//   - Settlement: a payment between group members to clear debts
//
// Finalized sessions are stored as session.Finalized records; the models
// here only describe what is listed or aggregated around them.
//
// # Design Principles
//
//  1. Amounts are int64 minor currency units, never floats
//  2. Relationships use ID strings instead of pointers
//  3. Timestamps are Unix seconds
package models
