// Package storage keeps registry checkpoints in content-addressed backends.
//
// Content is identified by the SHA-256 hash of the stored bytes, so any backend
// holding a checkpoint can serve it and the reader can verify what it got.
// Plain and sealed checkpoints live in separate namespaces.
//
// # Backends
//
// Backends are created from location URIs by StorageBackendFactory:
//
//	file:///var/lib/registry/checkpoints
//	s3://ACCESS_KEY:SECRET_KEY@bucket/prefix?region=eu-west-1&endpoint=minio:9000
//	ipfs://127.0.0.1:5001/registry?timeout=30s
//	vault://vault.internal:8200/secret/registry?token=...&tls=false
//
// S3 falls back to the default AWS credential chain when the URI carries no
// keys. IPFS writes into the node's mutable file system under the given root.
// Vault stores base64 content in a KV v2 mount.
//
// MultiStorageBackend writes to every backend and reads from the first that
// has the content, so a checkpoint survives the loss of all but one backend.
//
// # Checkpoints
//
// Checkpointer serializes a registry snapshot into a versioned envelope and,
// given a passphrase, seals it with cryptoutils before it leaves the process.
// A restored snapshot plus the journal events after its sequence number
// reproduce the registry exactly.
package storage
