package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/utility-registry/interfaces"
)

func TestResult(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{fmt.Errorf("%w: 0x01", interfaces.ErrNotAuthorized), "not_authorized"},
		{fmt.Errorf("%w: cap is 1", interfaces.ErrSupplyExceeded), "supply_exceeded"},
		{fmt.Errorf("journal append failed: %w", errors.New("disk full")), "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Result(tt.err))
	}
}

func TestRecordOperation(t *testing.T) {
	before := testutil.ToFloat64(registryOperations.WithLabelValues("mint", "already_minted"))
	RecordOperation("mint", interfaces.ErrAlreadyMinted)
	after := testutil.ToFloat64(registryOperations.WithLabelValues("mint", "already_minted"))
	assert.Equal(t, before+1, after)

	SetTotalSupply(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(totalSupply))
}

func TestInstrumentHandlerUsesRoutePattern(t *testing.T) {
	mux := chi.NewRouter()
	mux.Use(InstrumentHandler)
	mux.Get("/tokens/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/tokens/{id}", "418"))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tokens/42", nil))
	require.Equal(t, http.StatusTeapot, rr.Code)

	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/tokens/{id}", "418"))
	assert.Equal(t, before+1, after)
}

func TestNewRequiresName(t *testing.T) {
	_, err := New("", ":0")
	assert.Error(t, err)

	srv, err := New("utility_registry", "127.0.0.1:0")
	require.NoError(t, err)
	assert.NotNil(t, srv)
}
