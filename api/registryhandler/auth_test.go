package registryhandler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/flashbots/go-utils/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/ruteri/utility-registry/api"
)

// echoCaller responds with the authenticated caller address.
var echoCaller = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		http.Error(w, "no caller", http.StatusInternalServerError)
		return
	}
	w.Write([]byte(caller.Hex()))
})

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func newTestAuth(cfg AuthConfig, now time.Time) *Authenticator {
	a := NewAuthenticator(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	a.now = func() time.Time { return now }
	return a
}

func TestAuthenticatorAcceptsValidSignature(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	auth := newTestAuth(AuthConfig{SignatureTTL: time.Minute}, now)
	signer := newSigner(t)

	req := signedRequest(t, signer, http.MethodPost, "/api/v1/operators",
		api.OperatorRequest{Signed: api.Signed{Deadline: now.Add(30 * time.Second).Unix()}, Approved: true})
	rr := httptest.NewRecorder()
	auth.Middleware(echoCaller).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, signer.Address().Hex(), rr.Body.String())
}

func TestAuthenticatorRejections(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	signer := newSigner(t)
	valid := api.Signed{Deadline: now.Add(30 * time.Second).Unix()}

	tests := []struct {
		name   string
		req    func() *http.Request
		status int
	}{
		{
			name: "missing signature",
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/v1/operators", strings.NewReader(`{"deadline":1700000030}`))
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "missing deadline",
			req: func() *http.Request {
				return signedRequest(t, signer, http.MethodPost, "/api/v1/operators", api.OperatorRequest{})
			},
			status: http.StatusBadRequest,
		},
		{
			name: "body is not json",
			req: func() *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/api/v1/operators", strings.NewReader("nope"))
				sig, err := signer.Create(api.SigningPayload(http.MethodPost, "/api/v1/operators", []byte("nope")))
				require.NoError(t, err)
				req.Header.Set(api.SignatureHeader, sig)
				return req
			},
			status: http.StatusBadRequest,
		},
		{
			name: "expired deadline",
			req: func() *http.Request {
				return signedRequest(t, signer, http.MethodPost, "/api/v1/operators",
					api.OperatorRequest{Signed: api.Signed{Deadline: now.Add(-time.Second).Unix()}})
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "deadline beyond ttl",
			req: func() *http.Request {
				return signedRequest(t, signer, http.MethodPost, "/api/v1/operators",
					api.OperatorRequest{Signed: api.Signed{Deadline: now.Add(time.Hour).Unix()}})
			},
			status: http.StatusBadRequest,
		},
		{
			name: "tampered body",
			req: func() *http.Request {
				req := signedRequest(t, signer, http.MethodPost, "/api/v1/operators", api.OperatorRequest{Signed: valid})
				req.Body = io.NopCloser(bytes.NewReader([]byte(`{"deadline":1700000030,"approved":true}`)))
				return req
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "signature for another route",
			req: func() *http.Request {
				req := signedRequest(t, signer, http.MethodPost, "/api/v1/operators", api.OperatorRequest{Signed: valid})
				req.URL.Path = "/api/v1/tokens"
				return req
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "garbage signature header",
			req: func() *http.Request {
				req := signedRequest(t, signer, http.MethodPost, "/api/v1/operators", api.OperatorRequest{Signed: valid})
				req.Header.Set(api.SignatureHeader, common.Address{}.Hex()+":0xdeadbeef")
				return req
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "oversized body",
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/v1/operators", bytes.NewReader(make([]byte, maxBodySize+1)))
			},
			status: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			auth := newTestAuth(AuthConfig{SignatureTTL: time.Minute}, now)
			rr := httptest.NewRecorder()
			auth.Middleware(echoCaller).ServeHTTP(rr, tc.req())
			assert.Equal(t, tc.status, rr.Code, rr.Body.String())
		})
	}
}

func TestAuthenticatorRejectsReplay(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	auth := newTestAuth(AuthConfig{SignatureTTL: time.Minute}, now)
	signer := newSigner(t)

	payload := api.OperatorRequest{Signed: api.Signed{Deadline: now.Add(30 * time.Second).Unix(), Nonce: "n1"}}
	first := signedRequest(t, signer, http.MethodPost, "/api/v1/operators", payload)
	replay := first.Clone(first.Context())
	replay.Body = io.NopCloser(bytes.NewReader(mustJSON(t, payload)))

	rr := httptest.NewRecorder()
	auth.Middleware(echoCaller).ServeHTTP(rr, first)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = httptest.NewRecorder()
	auth.Middleware(echoCaller).ServeHTTP(rr, replay)
	assert.Equal(t, http.StatusConflict, rr.Code)

	// the same arguments with a new nonce are a new request
	payload.Nonce = "n2"
	rr = httptest.NewRecorder()
	auth.Middleware(echoCaller).ServeHTTP(rr, signedRequest(t, signer, http.MethodPost, "/api/v1/operators", payload))
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

// respell rewrites a go-utils signature header into an equivalent form that
// still verifies against the same payload.
func respell(t *testing.T, header string, rewrite func(addr string, sig []byte) (string, string)) string {
	t.Helper()
	addr, sigHex, ok := strings.Cut(header, ":")
	require.True(t, ok, header)
	sig, err := hexutil.Decode(sigHex)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	a, s := rewrite(addr, sig)
	return a + ":" + s
}

func TestAuthenticatorRejectsReplayUnderOtherSpellings(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	auth := newTestAuth(AuthConfig{SignatureTTL: time.Minute}, now)
	signer := newSigner(t)

	payload := api.UtilityBindingRequest{
		Signed:   api.Signed{Deadline: now.Add(30 * time.Second).Unix(), Nonce: "n1"},
		Address:  signer.Address(),
		Metadata: "vip",
	}
	body := mustJSON(t, payload)
	original := signedRequest(t, signer, http.MethodPut, "/api/v1/tokens/1/utility", payload)
	header := original.Header.Get(api.SignatureHeader)

	rr := httptest.NewRecorder()
	auth.Middleware(echoCaller).ServeHTTP(rr, original)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	variants := map[string]string{
		"lower-case address": respell(t, header, func(addr string, sig []byte) (string, string) {
			return strings.ToLower(addr), hexutil.Encode(sig)
		}),
		"upper-case address": respell(t, header, func(addr string, sig []byte) (string, string) {
			return "0x" + strings.ToUpper(addr[2:]), hexutil.Encode(sig)
		}),
		"upper-case signature hex": respell(t, header, func(addr string, sig []byte) (string, string) {
			return addr, "0x" + strings.ToUpper(hexutil.Encode(sig)[2:])
		}),
		"27/28 recovery byte": respell(t, header, func(addr string, sig []byte) (string, string) {
			v := append([]byte{}, sig...)
			if v[64] < 27 {
				v[64] += 27
			} else {
				v[64] -= 27
			}
			return addr, hexutil.Encode(v)
		}),
	}

	for name, variant := range variants {
		t.Run(name, func(t *testing.T) {
			require.NotEqual(t, header, variant)
			req := httptest.NewRequest(http.MethodPut, "/api/v1/tokens/1/utility", bytes.NewReader(body))
			req.Header.Set(api.SignatureHeader, variant)

			rr := httptest.NewRecorder()
			auth.Middleware(echoCaller).ServeHTTP(rr, req)
			assert.Equal(t, http.StatusConflict, rr.Code, rr.Body.String())
		})
	}
}

func TestAuthenticatorReplayDoesNotSpendRateBudget(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	auth := newTestAuth(AuthConfig{SignatureTTL: time.Minute, RateLimit: rate.Limit(1), RateBurst: 2}, now)
	signer := newSigner(t)

	request := func(nonce string) *http.Request {
		return signedRequest(t, signer, http.MethodPost, "/api/v1/operators",
			api.OperatorRequest{Signed: api.Signed{Deadline: now.Add(30 * time.Second).Unix(), Nonce: nonce}})
	}
	serve := func(req *http.Request) int {
		rr := httptest.NewRecorder()
		auth.Middleware(echoCaller).ServeHTTP(rr, req)
		return rr.Code
	}

	first := request("1")
	header := first.Header.Get(api.SignatureHeader)
	require.Equal(t, http.StatusOK, serve(first))

	for range 5 {
		replay := request("1")
		replay.Header.Set(api.SignatureHeader, header)
		assert.Equal(t, http.StatusConflict, serve(replay))
	}

	// the second token of the burst is still there for the signer
	assert.Equal(t, http.StatusOK, serve(request("2")))
	assert.Equal(t, http.StatusTooManyRequests, serve(request("3")))
}

func TestAuthenticatorRateLimitedRequestCanBeRetried(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	auth := newTestAuth(AuthConfig{SignatureTTL: time.Minute, RateLimit: rate.Limit(1), RateBurst: 1}, now)
	signer := newSigner(t)

	payload := api.OperatorRequest{Signed: api.Signed{Deadline: now.Add(30 * time.Second).Unix(), Nonce: "1"}}
	serve := func(req *http.Request) int {
		rr := httptest.NewRecorder()
		auth.Middleware(echoCaller).ServeHTTP(rr, req)
		return rr.Code
	}

	require.Equal(t, http.StatusOK, serve(signedRequest(t, signer, http.MethodPost, "/api/v1/operators", payload)))

	payload.Nonce = "2"
	limited := signedRequest(t, signer, http.MethodPost, "/api/v1/operators", payload)
	assert.Equal(t, http.StatusTooManyRequests, serve(limited))

	auth.now = func() time.Time { return now.Add(time.Second) }
	assert.Equal(t, http.StatusOK, serve(signedRequest(t, signer, http.MethodPost, "/api/v1/operators", payload)))
}

func TestAuthenticatorRateLimit(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	auth := newTestAuth(AuthConfig{SignatureTTL: time.Minute, RateLimit: rate.Limit(1), RateBurst: 2}, now)
	alice, bob := newSigner(t), newSigner(t)

	request := func(signer *signature.Signer, nonce string) int {
		body := mustJSON(t, api.OperatorRequest{Signed: api.Signed{Deadline: now.Add(30 * time.Second).Unix(), Nonce: nonce}})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/operators", bytes.NewReader(body))
		sig, err := signer.Create(api.SigningPayload(http.MethodPost, "/api/v1/operators", body))
		require.NoError(t, err)
		req.Header.Set(api.SignatureHeader, sig)

		rr := httptest.NewRecorder()
		auth.Middleware(echoCaller).ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, request(alice, "1"))
	assert.Equal(t, http.StatusOK, request(alice, "2"))
	assert.Equal(t, http.StatusTooManyRequests, request(alice, "3"))

	// limits are per caller
	assert.Equal(t, http.StatusOK, request(bob, "1"))

	// tokens refill with time
	auth.now = func() time.Time { return now.Add(time.Second) }
	assert.Equal(t, http.StatusOK, request(alice, "4"))
}
