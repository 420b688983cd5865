package interfaces

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// ContentID is the opaque identifier returned by a content store, stored
// immutably on a Record.
type ContentID string

// ComputeContentID calculates the CIDv1 (raw codec, sha2-256) of data.
// IPFS nodes produce the same identifier for single-block payloads added
// with raw leaves.
func ComputeContentID(data []byte) (ContentID, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("failed to hash content: %w", err)
	}
	return ContentID(cid.NewCidV1(cid.Raw, mh).String()), nil
}

// ParseContentID validates a content identifier string.
func ParseContentID(s string) (ContentID, error) {
	c, err := cid.Decode(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid content identifier %q: %w", s, err)
	}
	return ContentID(c.String()), nil
}

// String returns the identifier as stored on the ledger.
func (id ContentID) String() string {
	return string(id)
}

// IsAudio reports whether data sniffs as an audio payload.
func IsAudio(data []byte) bool {
	return strings.HasPrefix(http.DetectContentType(data), "audio/")
}

// StorageBackendLocation represents URI for storage backend.
type StorageBackendLocation string

// Scheme returns the lower-cased URI scheme or an empty string when the
// location cannot be parsed.
func (loc StorageBackendLocation) Scheme() string {
	u, err := url.Parse(string(loc))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Scheme)
}

var (
	// ErrContentNotFound is returned when requested content cannot be found in the storage backend.
	ErrContentNotFound = errors.New("content not found")

	// ErrBackendUnavailable is returned when a storage backend is not accessible.
	// This could be due to network issues, authentication failures, or service outages.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned when a storage location URI is malformed or unsupported.
	// URIs must follow the format: [scheme]://[auth@]host[:port][/path][?params]
	ErrInvalidLocationURI = errors.New("invalid storage location URI")

	// ErrNotAudio is returned when an upload payload is not an audio file.
	ErrNotAudio = errors.New("payload is not an audio file")
)

// ContentStore uploads payloads and returns their content identifier.
// An upload is a single atomic call; there is no partial-upload handling.
type ContentStore interface {
	// Upload saves data and returns its content identifier.
	Upload(ctx context.Context, data []byte) (ContentID, error)

	// Fetch retrieves data by content identifier.
	Fetch(ctx context.Context, id ContentID) ([]byte, error)
}

// StorageBackend provides content-addressed data storage.
type StorageBackend interface {
	ContentStore

	// Available checks if backend is accessible.
	Available(ctx context.Context) bool

	// Name returns identifier for logging.
	Name() string

	// LocationURI returns URI identifying this backend.
	LocationURI() string
}

// ContentMirror is implemented by backends that can keep a copy of content
// under an identifier assigned by another backend.
type ContentMirror interface {
	Put(ctx context.Context, id ContentID, data []byte) error
}

// StorageBackendFactory creates storage backends.
type StorageBackendFactory interface {
	// StorageBackendFor creates backend from URI.
	// Supports ipfs://, s3://, file://
	StorageBackendFor(locationURI StorageBackendLocation) (StorageBackend, error)

	// CreateMultiBackend creates aggregated storage backend.
	CreateMultiBackend(locationURIs []StorageBackendLocation) (StorageBackend, error)
}
