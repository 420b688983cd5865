// Package interfaces defines the core types and interfaces of the music
// copyright registry client, separating interface definitions from
// implementations.
//
// # Ledger Interfaces
//
// LedgerReader: read-only queries against the registry contract (fees,
// records, totals). Implementations use a connection that needs no signer.
//
// LedgerWriter: state-changing calls (simulate, submit, await confirmation).
// Requires an authenticated signer supplied by the caller.
//
// # Storage Interfaces
//
// ContentStore: uploads an audio payload and returns an opaque content
// identifier that is stored on the Record.
//
// StorageBackend: a ContentStore with availability and naming information,
// created from location URIs (ipfs://, s3://, file://).
//
// # Errors
//
// Every failure in the registration and access workflows maps to one of the
// errors defined in errors.go. Callers inspect them with errors.Is/errors.As.
package interfaces
