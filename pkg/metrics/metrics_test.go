package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeKind(t *testing.T) {
	assert.Equal(t, "master", ScopeKind(false))
	assert.Equal(t, "reference", ScopeKind(true))
}

func TestRecordResolveIncrementsCounterAndHistogram(t *testing.T) {
	before := testutil.ToFloat64(resolveTotal.WithLabelValues("master", "minted"))
	RecordResolve("master", "minted", 2*time.Millisecond)
	after := testutil.ToFloat64(resolveTotal.WithLabelValues("master", "minted"))
	assert.Equal(t, before+1, after)
	assert.Equal(t, 1, testutil.CollectAndCount(resolveDuration))
}

func TestRecordMintIncrementsCounter(t *testing.T) {
	before := testutil.ToFloat64(mintTotal.WithLabelValues("hsm"))
	RecordMint("hsm")
	after := testutil.ToFloat64(mintTotal.WithLabelValues("hsm"))
	assert.Equal(t, before+1, after)
}

func TestRecordLockWaitObserves(t *testing.T) {
	RecordLockWait("reference", time.Millisecond)
}

func TestRecordFacadeErrorIncrementsCounter(t *testing.T) {
	before := testutil.ToFloat64(errorsTotal.WithLabelValues("sign", "CERTIFICATE_EXPIRED"))
	RecordFacadeError("sign", "CERTIFICATE_EXPIRED")
	after := testutil.ToFloat64(errorsTotal.WithLabelValues("sign", "CERTIFICATE_EXPIRED"))
	assert.Equal(t, before+1, after)
}

func TestInstrumentHandlerRecordsStatusAndLatency(t *testing.T) {
	handler := InstrumentHandler("/v1/{app}/public-key", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/v1/{app}/public-key", "418"))

	req := httptest.NewRequest(http.MethodGet, "/v1/app1/public-key", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/v1/{app}/public-key", "418"))
	assert.Equal(t, before+1, after)
}

func TestInstrumentHandlerDefaultsStatusToOKWhenNotWritten(t *testing.T) {
	handler := InstrumentHandler("/v1/{app}/sign", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/app1/sign", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlerServesPrometheusExposition(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "keymanager_"))
}
