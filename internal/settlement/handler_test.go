package settlement

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

var errUnavailable = errors.New("provider unavailable")

func newWebhookServer(t *testing.T, f *fixture) *httptest.Server {
	t.Helper()
	h := NewHandler(f.service, testLogger())
	r := chi.NewRouter()
	h.Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestWebhookSettlesOrder(t *testing.T) {
	f := newFixture(orderDocs(1, 1, 1), 14270)
	srv := newWebhookServer(t, f)

	resp, err := http.Get(srv.URL + "/hooks/mangopay?EventType=PAYIN_NORMAL_SUCCEEDED&RessourceId=payin-1")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []int64{1}, f.completer.orders)
}

func TestWebhookAcceptsPost(t *testing.T) {
	f := newFixture(orderDocs(1, 1, 1), 14270)
	srv := newWebhookServer(t, f)

	resp, err := http.Post(srv.URL+"/hooks/mangopay?EventType=PAYIN_NORMAL_SUCCEEDED&RessourceId=payin-1", "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []int64{1}, f.completer.orders)
}

func TestWebhookRejectsUnknownEventType(t *testing.T) {
	f := newFixture(nil, 0)
	srv := newWebhookServer(t, f)

	resp, err := http.Get(srv.URL + "/hooks/mangopay?EventType=PAYIN_REFUND_SUCCEEDED&RessourceId=payin-1")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebhookRejectsMissingResourceID(t *testing.T) {
	f := newFixture(nil, 0)
	srv := newWebhookServer(t, f)

	resp, err := http.Get(srv.URL + "/hooks/mangopay?EventType=PAYIN_NORMAL_SUCCEEDED")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebhookFailureSignalsRedelivery(t *testing.T) {
	f := newFixture(orderDocs(1, 1, 1), 14270)
	// The pay-in lookup fails, so the whole event must be retried.
	f.provider.payinErr = errUnavailable
	srv := newWebhookServer(t, f)

	resp, err := http.Get(srv.URL + "/hooks/mangopay?EventType=PAYIN_NORMAL_SUCCEEDED&RessourceId=payin-1")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	// The claim was released so the redelivered event is processed.
	require.Empty(t, f.events.seen)
}
