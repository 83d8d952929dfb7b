// Package store defines the persistence contracts for cards and users.
// Implementations live under internal/platform; services depend only on the
// interfaces here, the sentinel errors, and RunInTransaction.
package store
