// Package models defines the core domain models for TripShare.
//
// # Trip Models
//
// The expense splitter works on a Trip snapshot:
//   - Trip: a named trip with a base currency, a roster and its expenses
//   - Person: a trip member, optionally merged with one partner
//   - Expense: one payment, split among a list of people or everyone
//   - Settlement: a computed payment instruction between balance groups
//
// # Accounts
//
//   - User: an authenticated account (id + username)
//
// # Design Principles
//
// 1. **Snapshots in, derived values out**: the calculator never mutates a Trip
// 2. **IDs, not pointers**: relationships such as merges use ID strings
// 3. **JSON shapes match the web client**: field tags are camelCase
package models
