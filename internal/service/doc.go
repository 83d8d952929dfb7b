// Package service contains the application use cases for card accounts and
// users. It orchestrates domain objects, the card-number codec and the
// repositories (backed by internal/store) to fulfill API operations.
//
// Key components:
//
// 1. CardService:
//   - Provisioning of new cards for an existing user
//   - Balance reads, the additive admin adjustment and per-user totals
//   - Status changes and hard deletion
//
// 2. TransferService:
//   - Moves money between two cards of the same user inside one transaction,
//     locking both rows in ascending id order
//
// 3. UserService:
//   - User directory operations, credential checks and the bootstrap admin
//
// Every operation takes the caller's identity as an explicit argument; nothing
// is read from ambient request state. Errors are sentinel values (see
// errors.go) wrapped in CardError or UserError when the failing entity id is
// part of the message shown to the caller.
package service
