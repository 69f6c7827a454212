// Package interfaces defines the types and contracts shared by the registry,
// its persistence layers and its HTTP surface, separating definitions from
// implementations.
//
// # Registry
//
// TokenRegistry is the full operation surface of the collectible registry:
// the holdership ledger (mint, transfer, approvals, enumeration), the
// utility-binding layer (bind, hasUtility, raw binding accessors) and
// governance (supply cap, metadata base, administrator). Mutating operations
// take the calling account explicitly; authorization is evaluated against it.
//
// EventJournal receives every committed batch of events before the registry
// applies the corresponding state change.
//
// # Storage
//
// StorageBackend provides content-addressed storage used for registry
// checkpoints across multiple backend types (file, S3, IPFS, Vault).
//
// StorageBackendFactory creates storage backends from URI strings and builds
// multi-backend configurations for redundant storage.
//
// # Types
//
//   - TokenID: 256-bit token identifier with canonical decimal form
//   - UtilityBinding: bound address plus opaque metadata
//   - Event: a single entry of the registry's append-only audit log
//   - RegistrySnapshot: the complete registry state at a sequence number
//   - ContentID: 32-byte SHA-256 hash for content addressing
package interfaces
