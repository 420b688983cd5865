package httpserver

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

const (
	// DefaultChallengeTTL is how long an issued nonce can be signed and used.
	DefaultChallengeTTL = 5 * time.Minute

	maxPendingChallenges = 10000
)

var (
	// ErrUnknownChallenge is returned for a nonce that was never issued,
	// already used, or expired.
	ErrUnknownChallenge = errors.New("unknown or expired challenge")

	// ErrBadSignature is returned when a signature was not made by the
	// account the challenge was issued to.
	ErrBadSignature = errors.New("signature does not match viewer")

	errTooManyChallenges = errors.New("too many pending challenges")
)

// Challenge is a one-time nonce a viewer signs with personal_sign to prove
// control of an account.
type Challenge struct {
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

type pendingChallenge struct {
	account common.Address
	message string
	expires time.Time
}

// Challenges issues nonces and verifies signatures over them. Each nonce is
// accepted at most once.
type Challenges struct {
	mu      sync.Mutex
	pending map[string]pendingChallenge
	ttl     time.Duration
	now     func() time.Time
}

// NewChallenges creates a challenge store whose nonces expire after ttl.
func NewChallenges(ttl time.Duration) *Challenges {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	return &Challenges{
		pending: make(map[string]pendingChallenge),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Issue creates a nonce bound to account.
func (c *Challenges) Issue(account common.Address) (*Challenge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for nonce, p := range c.pending {
		if now.After(p.expires) {
			delete(c.pending, nonce)
		}
	}
	if len(c.pending) >= maxPendingChallenges {
		return nil, errTooManyChallenges
	}

	nonce := uuid.NewString()
	p := pendingChallenge{
		account: account,
		message: fmt.Sprintf("Music registry access for %s\nNonce: %s", account.Hex(), nonce),
		expires: now.Add(c.ttl),
	}
	c.pending[nonce] = p

	return &Challenge{Nonce: nonce, Message: p.message, ExpiresAt: p.expires}, nil
}

// Verify consumes nonce and returns the account it was issued to if
// signature is that account's personal_sign over the challenge message.
// The recovery id may be given as 0/1 or 27/28.
func (c *Challenges) Verify(nonce string, signature []byte) (common.Address, error) {
	c.mu.Lock()
	p, ok := c.pending[nonce]
	delete(c.pending, nonce)
	now := c.now()
	c.mu.Unlock()

	if !ok || now.After(p.expires) {
		return common.Address{}, ErrUnknownChallenge
	}
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, ErrBadSignature
	}

	sig := append([]byte(nil), signature...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(p.message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if crypto.PubkeyToAddress(*pub) != p.account {
		return common.Address{}, ErrBadSignature
	}
	return p.account, nil
}
