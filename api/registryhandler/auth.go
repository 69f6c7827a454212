package registryhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/flashbots/go-utils/signature"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/ruteri/utility-registry/api"
)

const (
	// maxBodySize is the maximum allowed request body size (1MB).
	maxBodySize = 1024 * 1024

	// DefaultSignatureTTL applies when AuthConfig leaves SignatureTTL unset.
	DefaultSignatureTTL = 5 * time.Minute
)

var (
	// ErrSignatureExpired is returned when a request deadline has passed.
	ErrSignatureExpired = errors.New("signature expired")

	// ErrDeadlineTooFar is returned when a deadline exceeds the signature TTL.
	ErrDeadlineTooFar = errors.New("deadline too far in the future")

	// ErrReplayedSignature is returned when a signature was already accepted.
	ErrReplayedSignature = errors.New("signature already used")

	// ErrRateLimited is returned when a caller exceeds its request budget.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// AuthConfig configures signed request verification.
type AuthConfig struct {
	// SignatureTTL bounds how far in the future a request deadline may be.
	// Accepted signatures are remembered until their deadline passes.
	SignatureTTL time.Duration

	// RateLimit is the sustained number of mutating requests per second a
	// single caller may make. Zero disables rate limiting.
	RateLimit rate.Limit

	// RateBurst is the per-caller burst size.
	RateBurst int
}

// Authenticator verifies signed requests and puts the recovered caller
// address in the request context.
type Authenticator struct {
	cfg AuthConfig
	log *slog.Logger
	now func() time.Time

	seen *cache.Cache

	limitersMu sync.Mutex
	limiters   *cache.Cache
}

// NewAuthenticator creates an authenticator. Idle per-caller limiters are
// dropped after ten minutes.
func NewAuthenticator(cfg AuthConfig, log *slog.Logger) *Authenticator {
	if cfg.SignatureTTL <= 0 {
		cfg.SignatureTTL = DefaultSignatureTTL
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}
	return &Authenticator{
		cfg:      cfg,
		log:      log,
		now:      time.Now,
		seen:     cache.New(cfg.SignatureTTL, time.Minute),
		limiters: cache.New(10*time.Minute, time.Minute),
	}
}

type callerKey struct{}

// CallerFromContext returns the address recovered by the Authenticator.
func CallerFromContext(ctx context.Context) (common.Address, bool) {
	caller, ok := ctx.Value(callerKey{}).(common.Address)
	return caller, ok
}

// Middleware rejects requests without a valid, fresh and unused signature.
//
// Status codes:
//   - 400 Bad Request: unreadable body or missing deadline
//   - 401 Unauthorized: bad or expired signature
//   - 409 Conflict: signature already used
//   - 413 Request Entity Too Large: body over 1MB
//   - 429 Too Many Requests: caller over its rate limit
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, fmt.Errorf("could not read request body: %w", err).Error(), http.StatusBadRequest)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		caller, reqErr := a.verify(r, body)
		if reqErr != nil {
			a.log.Warn("Request authentication failed", "path", r.URL.Path, "err", reqErr.Err)
			http.Error(w, reqErr.Error(), reqErr.StatusCode)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, caller)))
	})
}

func (a *Authenticator) verify(r *http.Request, body []byte) (common.Address, *RequestError) {
	header := r.Header.Get(api.SignatureHeader)
	if header == "" {
		return common.Address{}, &RequestError{http.StatusUnauthorized, fmt.Errorf("missing %s header", api.SignatureHeader)}
	}

	var signed api.Signed
	if err := json.Unmarshal(body, &signed); err != nil {
		return common.Address{}, &RequestError{http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err)}
	}
	if signed.Deadline == 0 {
		return common.Address{}, &RequestError{http.StatusBadRequest, errors.New("missing deadline")}
	}

	now := a.now()
	deadline := time.Unix(signed.Deadline, 0)
	if now.After(deadline) {
		return common.Address{}, &RequestError{http.StatusUnauthorized, ErrSignatureExpired}
	}
	if deadline.Sub(now) > a.cfg.SignatureTTL {
		return common.Address{}, &RequestError{http.StatusBadRequest, ErrDeadlineTooFar}
	}

	payload := api.SigningPayload(r.Method, r.URL.Path, body)
	caller, err := signature.Verify(header, payload)
	if err != nil {
		return common.Address{}, &RequestError{http.StatusUnauthorized, fmt.Errorf("invalid signature: %w", err)}
	}

	// Many header spellings verify to the same signature, so replays are
	// keyed on the signed payload and the recovered signer.
	key := replayKey(caller, payload)
	if _, used := a.seen.Get(key); used {
		return common.Address{}, &RequestError{http.StatusConflict, ErrReplayedSignature}
	}

	if !a.allow(caller) {
		return common.Address{}, &RequestError{http.StatusTooManyRequests, ErrRateLimited}
	}

	// Remember the request one second past the deadline so it can not
	// come back as still valid within the same second.
	if err := a.seen.Add(key, caller, deadline.Sub(now)+time.Second); err != nil {
		return common.Address{}, &RequestError{http.StatusConflict, ErrReplayedSignature}
	}
	return caller, nil
}

func replayKey(caller common.Address, payload []byte) string {
	return caller.Hex() + ":" + crypto.Keccak256Hash(payload).Hex()
}

func (a *Authenticator) allow(caller common.Address) bool {
	if a.cfg.RateLimit <= 0 {
		return true
	}

	a.limitersMu.Lock()
	defer a.limitersMu.Unlock()

	key := caller.Hex()
	limiter, ok := a.limiters.Get(key)
	if !ok {
		limiter = rate.NewLimiter(a.cfg.RateLimit, a.cfg.RateBurst)
	}
	a.limiters.SetDefault(key, limiter)
	return limiter.(*rate.Limiter).AllowN(a.now(), 1)
}
