package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/sheikh-saqib/network-ledger/internal/events/kafka"
	interfaces "github.com/sheikh-saqib/network-ledger/internal/interfaces"
	"github.com/sheikh-saqib/network-ledger/internal/ledger"
	"github.com/sheikh-saqib/network-ledger/internal/models"
	"github.com/sheikh-saqib/network-ledger/internal/pkg/logger"
)

const maxEventBody = 1 << 20

// Handler serves the ops endpoints:
//
//	GET  /health
//	GET  /ledgers?member_id=
//	GET  /metrics
//	POST /events?name=   publishes a JSON event on the local bus
type Handler struct {
	ledgers interfaces.LedgerRepository
	bus     interfaces.EventPublisher
	reader  *metric.ManualReader
	log     *logger.Logger
	mux     *http.ServeMux
}

// NewHandler wires the routes. bus and reader may be nil, which disables
// /events and /metrics.
func NewHandler(ledgers interfaces.LedgerRepository, bus interfaces.EventPublisher, reader *metric.ManualReader, log *logger.Logger) *Handler {
	h := &Handler{
		ledgers: ledgers,
		bus:     bus,
		reader:  reader,
		log:     log.With("component", "OpsHandler"),
		mux:     http.NewServeMux(),
	}
	h.mux.HandleFunc("/health", h.health)
	h.mux.HandleFunc("/ledgers", h.ledger)
	h.mux.HandleFunc("/metrics", h.metrics)
	h.mux.HandleFunc("/events", h.events)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ledger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	raw := r.URL.Query().Get("member_id")
	if raw == "" {
		http.Error(w, "member_id is a mandatory field", http.StatusBadRequest)
		return
	}
	memberID, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "member_id must be a uuid", http.StatusBadRequest)
		return
	}

	l, err := h.ledgers.FindByMemberID(r.Context(), memberID)
	if errors.Is(err, models.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("load ledger failed", "member_id", memberID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, newLedgerView(l))
}

func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h.bus == nil {
		http.Error(w, "event ingestion disabled", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	event, err := kafka.DecodeEvent(r.URL.Query().Get("name"), body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Handlers report their own outcomes; an error here means a handler
	// could not be reached at all.
	if err := h.bus.Publish(r.Context(), event); err != nil {
		h.log.Error("publish event failed", "event", event.EventName(), "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"event": event.EventName()})
}

func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		http.Error(w, "metrics disabled", http.StatusNotFound)
		return
	}
	points, err := collectCounters(r.Context(), h.reader)
	if err != nil {
		h.log.Error("collect metrics failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

type counterPoint struct {
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes"`
	Value      int64             `json:"value"`
}

// collectCounters flattens every int64 sum the reader holds.
func collectCounters(ctx context.Context, reader *metric.ManualReader) ([]counterPoint, error) {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return nil, err
	}

	points := []counterPoint{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				attrs := map[string]string{}
				for _, kv := range dp.Attributes.ToSlice() {
					attrs[string(kv.Key)] = kv.Value.Emit()
				}
				points = append(points, counterPoint{Name: m.Name, Attributes: attrs, Value: dp.Value})
			}
		}
	}
	return points, nil
}

type transactionView struct {
	ID                   uuid.UUID `json:"id"`
	Type                 string    `json:"type"`
	ServiceType          string    `json:"service_type"`
	ServiceTransactionID string    `json:"service_transaction_id"`
	Amount               int64     `json:"amount"`
	AmountType           string    `json:"amount_type"`
	Timestamp            time.Time `json:"timestamp"`
}

type ledgerView struct {
	ID               uuid.UUID         `json:"id"`
	MemberID         uuid.UUID         `json:"member_id"`
	DueAmount        int64             `json:"due_amount"`
	DueNetworkAmount int64             `json:"due_network_amount"`
	Version          int64             `json:"version"`
	Transactions     []transactionView `json:"transactions"`
}

func newLedgerView(l *ledger.Ledger) ledgerView {
	view := ledgerView{
		ID:               l.ID(),
		MemberID:         l.MemberID(),
		DueAmount:        l.DueAmount().Value(),
		DueNetworkAmount: l.DueNetworkAmount().Value(),
		Version:          l.Version(),
		Transactions:     []transactionView{},
	}
	for _, tx := range l.Transactions() {
		view.Transactions = append(view.Transactions, transactionView{
			ID:                   tx.ID,
			Type:                 string(tx.Type),
			ServiceType:          string(tx.Service.Type),
			ServiceTransactionID: tx.Service.TransactionID,
			Amount:               tx.Amount.Value(),
			AmountType:           string(tx.Amount.Type()),
			Timestamp:            tx.Timestamp,
		})
	}
	return view
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
