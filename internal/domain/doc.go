// Package domain contains the core business entities, value objects, and
// domain logic of the application: card accounts, their statuses and balance
// arithmetic, and the users that own them. It is independent of any storage
// engine or delivery mechanism.
package domain
