// Package storage provides content stores for uploaded audio with pluggable
// backends.
//
// Content is addressed by CID. Backends that compute identifiers themselves
// (file, S3) use a CIDv1 with raw codec and sha2-256 multihash, which is what
// an IPFS node returns for a single-block payload added with raw leaves.
//
// # Storage URI Format
//
// Storage backends are specified using URI format:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - ipfs://127.0.0.1:5001/?timeout=30s
//   - s3://bucket-name/prefix/?region=us-west-2
//   - file:///var/lib/musicreg/content/
//
// # Multi-Backend Storage
//
// The MultiStorageBackend aggregates multiple backends for redundancy:
//
//   - Upload: the first available backend assigns the identifier, the others
//     keep a copy under it
//   - Fetch: tries each backend until content is found
//   - Available: returns true if any backend is available
//
// # Usage Example
//
//	factory := storage.NewStorageBackendFactory(logger)
//	store, err := factory.CreateMultiBackend([]interfaces.StorageBackendLocation{
//	    "ipfs://127.0.0.1:5001/",
//	    "s3://my-bucket/songs/?region=us-west-2",
//	})
//	if err != nil {
//	    log.Fatalf("Failed to create content store: %v", err)
//	}
//
//	id, err := store.Upload(ctx, audio)
package storage
