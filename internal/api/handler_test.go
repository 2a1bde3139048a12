package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/sheikh-saqib/network-ledger/internal/events/bus"
	"github.com/sheikh-saqib/network-ledger/internal/ledger"
	"github.com/sheikh-saqib/network-ledger/internal/models"
	"github.com/sheikh-saqib/network-ledger/internal/models/events"
	"github.com/sheikh-saqib/network-ledger/internal/pkg/logger"
	"github.com/sheikh-saqib/network-ledger/internal/storage/memory"
)

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := NewHandler(memory.NewLedgerStore(), nil, nil, logger.Nop())
	rec := serve(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestLedger(t *testing.T) {
	store := memory.NewLedgerStore()
	memberID := uuid.New()
	l, err := ledger.New(memberID)
	require.NoError(t, err)
	due, err := models.MemberAmount(30)
	require.NoError(t, err)
	require.NoError(t, l.CreditDueAmount(due, models.ContributionService("c-1")))
	require.NoError(t, store.Save(context.Background(), l))

	h := NewHandler(store, nil, nil, logger.Nop())

	rec := serve(h, http.MethodGet, "/ledgers?member_id="+memberID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view ledgerView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, memberID, view.MemberID)
	assert.Equal(t, int64(30), view.DueAmount)
	require.Len(t, view.Transactions, 1)
	assert.Equal(t, "CREDIT", view.Transactions[0].Type)
	assert.Equal(t, "MEMBER_DUE", view.Transactions[0].AmountType)

	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/ledgers?member_id="+uuid.NewString(), "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(h, http.MethodGet, "/ledgers", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(h, http.MethodGet, "/ledgers?member_id=nope", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(h, http.MethodPost, "/ledgers", "").Code)
}

func TestEvents(t *testing.T) {
	b := bus.New()
	var got []events.Event
	require.NoError(t, b.Subscribe(events.NameContributionMade, func(_ context.Context, e events.Event) error {
		got = append(got, e)
		return nil
	}))
	h := NewHandler(memory.NewLedgerStore(), b, nil, logger.Nop())

	contributor := uuid.New()
	body := `{"contribution_id":"c-1","contributor_id":"` + contributor.String() + `","amount":100}`
	rec := serve(h, http.MethodPost, "/events?name=contribution.made", body)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, got, 1)
	assert.Equal(t, events.ContributionMade{ContributionID: "c-1", ContributorID: contributor, Amount: 100}, got[0])

	assert.Equal(t, http.StatusBadRequest, serve(h, http.MethodPost, "/events?name=contribution.made", `{"amount":1.5}`).Code)
	assert.Equal(t, http.StatusBadRequest, serve(h, http.MethodPost, "/events?name=unknown", `{}`).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(h, http.MethodGet, "/events", "").Code)

	disabled := NewHandler(memory.NewLedgerStore(), nil, nil, logger.Nop())
	assert.Equal(t, http.StatusNotFound, serve(disabled, http.MethodPost, "/events?name=contribution.made", body).Code)
}

func TestMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	counter, err := provider.Meter("test").Int64Counter("ledger_cascade_outcomes_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 2)

	h := NewHandler(memory.NewLedgerStore(), nil, reader, logger.Nop())
	rec := serve(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var points []counterPoint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &points))
	require.Len(t, points, 1)
	assert.Equal(t, "ledger_cascade_outcomes_total", points[0].Name)
	assert.Equal(t, int64(2), points[0].Value)

	assert.Equal(t, http.StatusNotFound, serve(NewHandler(memory.NewLedgerStore(), nil, nil, logger.Nop()), http.MethodGet, "/metrics", "").Code)
}
