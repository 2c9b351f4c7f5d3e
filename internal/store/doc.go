// Package store manages channel, campaign, product, and production run
// persistence backed by SQLite.
//
// All monetary amounts are integer cents so budget comparisons stay exact
// under concurrent commits. Timestamps are stored as RFC3339Nano UTC strings.
package store
