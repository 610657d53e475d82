package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"finlink/internal/domain/connection"
	"finlink/internal/domain/ledger"
	"finlink/internal/domain/openfinance"
	"finlink/internal/domain/reconcile"
)

const maxImportBody = 1 << 20

// ConnectionReader reads stored connections.
type ConnectionReader interface {
	List(ctx context.Context) ([]connection.Connection, error)
	Get(ctx context.Context, id string) (*connection.Connection, error)
}

// Linker imports and removes connections.
type Linker interface {
	ImportConnection(ctx context.Context, linked connection.Connection) (*reconcile.MatchResult, error)
	RemoveConnection(ctx context.Context, id string) (*connection.RemoveOutcome, error)
}

// Refresher refreshes balances for one or all connections.
type Refresher interface {
	RefreshConnection(ctx context.Context, id string) (*openfinance.RefreshOutcome, error)
	RefreshAll(ctx context.Context) ([]openfinance.RefreshOutcome, error)
}

// RefreshPublisher queues a refresh for a background worker.
type RefreshPublisher interface {
	PublishRefresh(ctx context.Context, connectionID string) (string, error)
}

// ConnectionHandler serves the connection endpoints.
type ConnectionHandler struct {
	connections ConnectionReader
	linker      Linker
	refresher   Refresher
	queue       RefreshPublisher
}

// NewConnectionHandler creates a connection handler. queue may be nil, in
// which case ?async=1 is rejected.
func NewConnectionHandler(connections ConnectionReader, linker Linker, refresher Refresher, queue RefreshPublisher) *ConnectionHandler {
	return &ConnectionHandler{connections: connections, linker: linker, refresher: refresher, queue: queue}
}

// ImportConnectionRequest is the payload produced by the link flow.
type ImportConnectionRequest struct {
	ID               string                       `json:"id"`
	InstitutionName  string                       `json:"institutionName"`
	InstitutionID    string                       `json:"institutionId"`
	AccessCredential string                       `json:"accessCredential"`
	Accounts         []connection.ExternalAccount `json:"accounts"`
}

// ConnectionResponse is a connection without its access credential.
type ConnectionResponse struct {
	ID              string                       `json:"id"`
	InstitutionName string                       `json:"institutionName"`
	InstitutionID   string                       `json:"institutionId,omitempty"`
	Accounts        []connection.ExternalAccount `json:"accounts"`
	LastSync        *time.Time                   `json:"lastSync,omitempty"`
	RequiresRelink  bool                         `json:"requiresRelink"`
}

// ImportResponse reports the matching pass that ran on import.
type ImportResponse struct {
	Connection      ConnectionResponse           `json:"connection"`
	Matched         []reconcile.Match            `json:"matched"`
	Unmatched       []connection.ExternalAccount `json:"unmatched"`
	NewCards        []ledger.Card                `json:"newCards"`
	NewBankAccounts []ledger.BankAccount         `json:"newBankAccounts"`
}

// HandleConnections lists connections (GET) or imports one (POST).
func (h *ConnectionHandler) HandleConnections(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleList(w, r)
	case http.MethodPost:
		h.handleImport(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleConnectionByID returns (GET) or removes (DELETE) one connection.
func (h *ConnectionHandler) HandleConnectionByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "Connection ID is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		conn, err := h.connections.Get(r.Context(), id)
		if err != nil {
			h.writeLookupError(w, id, err)
			return
		}
		writeJSON(w, http.StatusOK, toConnectionResponse(*conn))
	case http.MethodDelete:
		outcome, err := h.linker.RemoveConnection(r.Context(), id)
		if err != nil {
			h.writeLookupError(w, id, err)
			return
		}
		writeJSON(w, http.StatusOK, outcome)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleRefreshConnection refreshes one connection, or queues the refresh
// when called with ?async=1.
func (h *ConnectionHandler) HandleRefreshConnection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "Connection ID is required", http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("async") == "1" {
		h.handleQueueRefresh(w, r, id)
		return
	}

	outcome, err := h.refresher.RefreshConnection(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, outcome)
	case errors.Is(err, connection.ErrConnectionNotFound):
		http.Error(w, "Connection not found", http.StatusNotFound)
	case errors.Is(err, openfinance.ErrProviderUnauthorized), errors.Is(err, openfinance.ErrRelinkRequired):
		writeJSON(w, http.StatusConflict, outcome)
	default:
		writeJSON(w, http.StatusBadGateway, outcome)
	}
}

// HandleRefreshAll refreshes every connection and returns one outcome each.
func (h *ConnectionHandler) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	outcomes, err := h.refresher.RefreshAll(r.Context())
	if err != nil {
		log.Printf("Error refreshing all connections: %v", err)
		http.Error(w, "Failed to refresh connections", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, outcomes)
}

func (h *ConnectionHandler) handleList(w http.ResponseWriter, r *http.Request) {
	conns, err := h.connections.List(r.Context())
	if err != nil {
		log.Printf("Error listing connections: %v", err)
		http.Error(w, "Failed to list connections", http.StatusInternalServerError)
		return
	}

	response := make([]ConnectionResponse, 0, len(conns))
	for _, c := range conns {
		response = append(response, toConnectionResponse(c))
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *ConnectionHandler) handleImport(w http.ResponseWriter, r *http.Request) {
	var req ImportConnectionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxImportBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.linker.ImportConnection(r.Context(), connection.Connection{
		ID:               req.ID,
		InstitutionName:  req.InstitutionName,
		InstitutionID:    req.InstitutionID,
		AccessCredential: req.AccessCredential,
		Accounts:         req.Accounts,
	})
	if err != nil {
		if errors.Is(err, connection.ErrInvalidConnection) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("Error importing connection %s: %v", req.ID, err)
		http.Error(w, "Failed to import connection", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, ImportResponse{
		Connection:      toConnectionResponse(result.Connection),
		Matched:         orEmpty(result.Matched),
		Unmatched:       orEmpty(result.Unmatched),
		NewCards:        orEmpty(result.NewCards),
		NewBankAccounts: orEmpty(result.NewBankAccounts),
	})
}

func (h *ConnectionHandler) handleQueueRefresh(w http.ResponseWriter, r *http.Request, id string) {
	if h.queue == nil {
		http.Error(w, "Async refresh is not configured", http.StatusServiceUnavailable)
		return
	}
	if _, err := h.connections.Get(r.Context(), id); err != nil {
		h.writeLookupError(w, id, err)
		return
	}

	messageID, err := h.queue.PublishRefresh(r.Context(), id)
	if err != nil {
		log.Printf("Connection %s: failed to queue refresh: %v", id, err)
		http.Error(w, "Failed to queue refresh", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"connectionId": id, "messageId": messageID})
}

func (h *ConnectionHandler) writeLookupError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, connection.ErrConnectionNotFound) {
		http.Error(w, "Connection not found", http.StatusNotFound)
		return
	}
	log.Printf("Error loading connection %s: %v", id, err)
	http.Error(w, "Failed to load connection", http.StatusInternalServerError)
}

func toConnectionResponse(c connection.Connection) ConnectionResponse {
	return ConnectionResponse{
		ID:              c.ID,
		InstitutionName: c.InstitutionName,
		InstitutionID:   c.InstitutionID,
		Accounts:        orEmpty(c.Accounts),
		LastSync:        c.LastSync,
		RequiresRelink:  c.RequiresRelink,
	}
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
