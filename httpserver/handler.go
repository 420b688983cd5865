package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"github.com/ruteri/music-copyright-registry/access"
	"github.com/ruteri/music-copyright-registry/interfaces"
)

// FeeView is the fee cache as used by the API.
type FeeView interface {
	interfaces.FeeSource
	Refresh(ctx context.Context) error
}

// CatalogView is the record catalog as used by the API.
type CatalogView interface {
	interfaces.RecordSource
	Records() ([]interfaces.Record, bool)
	FilterByRegistrant(account string) []interfaces.Record
	LoadedAt() (time.Time, bool)
	LastError() error
}

// AccessDecider applies the access rules without paying.
type AccessDecider interface {
	Decide(viewer interfaces.ViewerContext, record interfaces.Record) (access.Decision, error)
	Certificate(record interfaces.Record) *access.Certificate
}

// RequestError provides structured error information for HTTP responses.
// It includes both an HTTP status code and the underlying error.
type RequestError struct {
	// StatusCode is the HTTP status code to return.
	StatusCode int

	// Err is the underlying error.
	Err error
}

// Error returns the error message from the underlying error.
func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Headers carrying a signed challenge on certificate requests.
const (
	NonceHeader     = "X-Viewer-Nonce"
	SignatureHeader = "X-Viewer-Signature"
)

// Handler serves the read-only registry API. It never signs transactions:
// certificates that need payment are answered with 402 and the fee to pay.
// Certificates are only served to viewers that signed a challenge.
type Handler struct {
	fees       FeeView
	catalog    CatalogView
	gate       AccessDecider
	challenges *Challenges
	log        *slog.Logger
}

// NewHandler creates a new HTTP request handler with the specified dependencies.
func NewHandler(fees FeeView, catalog CatalogView, gate AccessDecider, log *slog.Logger) *Handler {
	return &Handler{
		fees:       fees,
		catalog:    catalog,
		gate:       gate,
		challenges: NewChallenges(DefaultChallengeTTL),
		log:        log,
	}
}

type feesResponse struct {
	RegistrationFee string    `json:"registration_fee"`
	AccessFee       string    `json:"access_fee"`
	FetchedAt       time.Time `json:"fetched_at"`
}

// song is the public view of a record. The content id is only handed out
// in certificates.
type song struct {
	ID           uint64         `json:"id"`
	Registrant   common.Address `json:"registrant"`
	Title        string         `json:"title"`
	Author       string         `json:"author"`
	License      string         `json:"license"`
	RegisteredAt time.Time      `json:"registered_at"`
	AccessCount  uint64         `json:"access_count"`
	Active       bool           `json:"active"`
}

func songFrom(r interfaces.Record) song {
	return song{
		ID:           r.ID,
		Registrant:   r.Registrant,
		Title:        r.Title,
		Author:       r.Author,
		License:      r.License,
		RegisteredAt: r.RegisteredAt,
		AccessCount:  r.AccessCount,
		Active:       r.Active,
	}
}

type songsResponse struct {
	Songs    []song    `json:"songs"`
	LoadedAt time.Time `json:"loaded_at"`
	Stale    bool      `json:"stale"`
}

type accessResponse struct {
	ID     uint64 `json:"id"`
	Free   bool   `json:"free"`
	Reason string `json:"reason,omitempty"`
	Fee    string `json:"fee,omitempty"`
}

type paymentRequiredResponse struct {
	Error string `json:"error"`
	ID    uint64 `json:"id"`
	Fee   string `json:"fee"`
}

// HandleFees returns the cached fee schedule.
//
// URL format: GET /api/fees
//
// Amounts are decimal strings in wei. Responds 503 until fees are loaded.
func (h *Handler) HandleFees(w http.ResponseWriter, r *http.Request) {
	schedule, loaded := h.fees.Current()
	if !loaded {
		h.writeError(w, &RequestError{StatusCode: http.StatusServiceUnavailable, Err: interfaces.ErrFeeNotLoaded})
		return
	}

	h.writeJSON(w, http.StatusOK, feesResponse{
		RegistrationFee: amount(schedule.RegistrationFee),
		AccessFee:       amount(schedule.AccessFee),
		FetchedAt:       schedule.FetchedAt,
	})
}

// HandleSongs lists records newest first, optionally only those of one
// registrant.
//
// URL format: GET /api/songs[?registrant=0x...]
func (h *Handler) HandleSongs(w http.ResponseWriter, r *http.Request) {
	records, loaded := h.catalog.Records()
	if !loaded {
		err := h.catalog.LastError()
		if err == nil {
			err = errors.New("catalog not loaded")
		}
		h.writeError(w, &RequestError{StatusCode: http.StatusServiceUnavailable, Err: err})
		return
	}

	if registrant := r.URL.Query().Get("registrant"); registrant != "" {
		records = h.catalog.FilterByRegistrant(registrant)
	}
	songs := make([]song, 0, len(records))
	for _, r := range records {
		songs = append(songs, songFrom(r))
	}

	loadedAt, _ := h.catalog.LoadedAt()
	h.writeJSON(w, http.StatusOK, songsResponse{
		Songs:    songs,
		LoadedAt: loadedAt,
		Stale:    h.catalog.LastError() != nil,
	})
}

// HandleSong returns a single record.
//
// URL format: GET /api/songs/{id}
func (h *Handler) HandleSong(w http.ResponseWriter, r *http.Request) {
	record, err := h.lookup(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, songFrom(record))
}

// HandleChallenge issues a one-time nonce for viewer to sign with
// personal_sign before requesting a certificate.
//
// URL format: POST /api/challenge?viewer=0x...
func (h *Handler) HandleChallenge(w http.ResponseWriter, r *http.Request) {
	viewer := r.URL.Query().Get("viewer")
	if !common.IsHexAddress(viewer) {
		h.writeError(w, &RequestError{StatusCode: http.StatusBadRequest, Err: errors.New("invalid viewer address")})
		return
	}

	challenge, err := h.challenges.Issue(common.HexToAddress(viewer))
	if err != nil {
		h.writeError(w, &RequestError{StatusCode: http.StatusServiceUnavailable, Err: err})
		return
	}
	h.writeJSON(w, http.StatusOK, challenge)
}

// HandleAccess tells whether viewer may see the record's certificate for
// free, and otherwise which fee is due. The answer is only a quote, so the
// viewer is not verified here.
//
// URL format: GET /api/songs/{id}/access?viewer=0x...
func (h *Handler) HandleAccess(w http.ResponseWriter, r *http.Request) {
	record, err := h.lookup(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	decision, err := h.gate.Decide(viewerFrom(r), record)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, accessResponse{
		ID:     record.ID,
		Free:   decision.Free,
		Reason: decision.Reason,
		Fee:    amount(decision.Fee),
	})
}

// HandleCertificate returns the certificate when the verified viewer has free
// access. Paid access is settled on the ledger by the viewer's own wallet, so
// this endpoint answers 402 with the fee instead.
//
// URL format: GET /api/songs/{id}/certificate
// with X-Viewer-Nonce and X-Viewer-Signature from POST /api/challenge.
func (h *Handler) HandleCertificate(w http.ResponseWriter, r *http.Request) {
	record, err := h.lookup(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	viewer, err := h.verifiedViewer(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	decision, err := h.gate.Decide(viewer, record)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !decision.Free {
		h.writeJSON(w, http.StatusPaymentRequired, paymentRequiredResponse{
			Error: "access fee required",
			ID:    record.ID,
			Fee:   amount(decision.Fee),
		})
		return
	}

	h.writeJSON(w, http.StatusOK, h.gate.Certificate(record))
}

// HandleRefresh reloads fees and the catalog from the ledger.
//
// URL format: POST /api/refresh
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	feeErr := h.fees.Refresh(r.Context())
	catalogErr := h.catalog.RefreshAll(r.Context())

	if err := errors.Join(feeErr, catalogErr); err != nil {
		h.log.Warn("Refresh failed", "err", err)
		h.writeError(w, &RequestError{StatusCode: http.StatusBadGateway, Err: err})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

func (h *Handler) lookup(r *http.Request) (interfaces.Record, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		return interfaces.Record{}, &RequestError{StatusCode: http.StatusBadRequest, Err: errors.New("invalid song id")}
	}

	if _, loaded := h.catalog.LoadedAt(); !loaded {
		return interfaces.Record{}, &RequestError{StatusCode: http.StatusServiceUnavailable, Err: errors.New("catalog not loaded")}
	}
	record, ok := h.catalog.Lookup(id)
	if !ok {
		return interfaces.Record{}, interfaces.ErrNotFound
	}
	return record, nil
}

func viewerFrom(r *http.Request) interfaces.ViewerContext {
	return interfaces.ViewerContext{Account: r.URL.Query().Get("viewer")}
}

// verifiedViewer returns the account that signed the request's challenge.
func (h *Handler) verifiedViewer(r *http.Request) (interfaces.ViewerContext, error) {
	nonce := r.Header.Get(NonceHeader)
	sigHex := r.Header.Get(SignatureHeader)
	if nonce == "" || sigHex == "" {
		return interfaces.ViewerContext{}, &RequestError{StatusCode: http.StatusUnauthorized, Err: interfaces.ErrNotConnected}
	}

	signature, err := hexutil.Decode(sigHex)
	if err != nil {
		return interfaces.ViewerContext{}, &RequestError{StatusCode: http.StatusUnauthorized, Err: ErrBadSignature}
	}

	account, err := h.challenges.Verify(nonce, signature)
	if err != nil {
		h.log.Debug("Viewer verification failed", "err", err)
		return interfaces.ViewerContext{}, &RequestError{StatusCode: http.StatusUnauthorized, Err: err}
	}
	return interfaces.ViewerContext{Account: account.Hex()}, nil
}

func amount(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

func statusFor(err error) int {
	var reqErr *RequestError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.StatusCode
	case errors.Is(err, interfaces.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrNotConnected):
		return http.StatusUnauthorized
	case errors.Is(err, interfaces.ErrInvalidRecord):
		return http.StatusUnprocessableEntity
	case errors.Is(err, interfaces.ErrFeeNotLoaded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed", "err", err, slog.Int("status", status))
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}
