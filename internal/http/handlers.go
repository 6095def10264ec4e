package http

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	"pricewatch/internal/core"
	"pricewatch/internal/ledger"
	"pricewatch/internal/log"
	"pricewatch/internal/services"
)

// Multipart bodies beyond this stay on disk rather than in memory.
const multipartMemory = 8 << 20

type invoicesResponse struct {
	Account  string               `json:"account"`
	Invoices []core.InvoiceRecord `json:"invoices"`
}

type recordedResponse struct {
	Account  string              `json:"account"`
	Recorded []services.Analysed `json:"recorded"`
}

type leaderboardResponse struct {
	Account    string                `json:"account"`
	Suppliers  []core.SupplierRecord `json:"suppliers"`
	TopSpender *core.SupplierRecord  `json:"top_spender"`
}

type alertResponse struct {
	Account string            `json:"account"`
	Month   string            `json:"month,omitempty"`
	Alert   *ledger.LeakAlert `json:"alert"`
}

type vatResponse struct {
	Amount float64 `json:"amount"`
	Rate   float64 `json:"rate"`
	VAT    float64 `json:"vat"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.svc.Ping(ctx); err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentHTTP).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
}

// handleRecordInvoices accepts one or more "file" parts and records them in
// form order. A "supplier" value names the supplier of a single upload.
func (s *Server) handleRecordInvoices(w http.ResponseWriter, r *http.Request) {
	account, err := accountFrom(r)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}

	maxBody := s.opts.MaxUploadBytes*int64(s.opts.MaxFilesPerRequest) + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if statusFor(err) == http.StatusRequestEntityTooLarge {
			s.fail(w, r, log.OpCreate, err)
			return
		}
		writeError(w, http.StatusBadRequest, "expected a multipart/form-data body with one or more file fields")
		return
	}
	defer r.MultipartForm.RemoveAll()

	uploads, err := readUploads(r.MultipartForm, s.opts.MaxUploadBytes, s.opts.MaxFilesPerRequest)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}

	supplier := strings.TrimSpace(r.FormValue("supplier"))
	recorded, err := s.svc.AnalyseBatch(r.Context(), account, uploads, supplier)
	if err != nil && len(recorded) == 0 {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	if err != nil {
		// Part of the batch is already saved; report what was recorded.
		log.FromContext(r.Context()).WithComponent(log.ComponentHTTP).ErrorContext(r.Context(), "Batch stopped early",
			log.FieldAccount, account,
			"recorded", len(recorded),
			log.FieldError, err)
	}
	writeJSON(w, http.StatusCreated, recordedResponse{Account: account, Recorded: recorded})
}

func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	account, err := accountFrom(r)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	invs, err := s.svc.Invoices(r.Context(), account, monthFrom(r))
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	if invs == nil {
		invs = []core.InvoiceRecord{}
	}
	writeJSON(w, http.StatusOK, invoicesResponse{Account: account, Invoices: invs})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	account, err := accountFrom(r)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	board, err := s.svc.Leaderboard(r.Context(), account)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	resp := leaderboardResponse{Account: account, Suppliers: board}
	if len(board) > 0 {
		top := board[0]
		resp.TopSpender = &top
	} else {
		resp.Suppliers = []core.SupplierRecord{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	account, err := accountFrom(r)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	sum, err := s.svc.Summary(r.Context(), account, monthFrom(r))
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	account, err := accountFrom(r)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	month := monthFrom(r)
	alert, ok, err := s.svc.TopIncreaseAlert(r.Context(), account, month)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	resp := alertResponse{Account: account, Month: month}
	if ok {
		resp.Alert = &alert
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVAT(w http.ResponseWriter, r *http.Request) {
	amount, ok, err := parseFloatParam(r, "amount")
	if err != nil || !ok || math.IsNaN(amount) || math.IsInf(amount, 0) {
		writeError(w, http.StatusBadRequest, "amount query parameter must be a number")
		return
	}
	rate, ok, err := parseFloatParam(r, "rate")
	if err != nil || (ok && !(rate >= 0 && rate < 1)) {
		writeError(w, http.StatusBadRequest, "rate must be a number at least 0 and below 1")
		return
	}
	if !ok {
		rate = s.opts.VATRate
	}
	writeJSON(w, http.StatusOK, vatResponse{
		Amount: amount,
		Rate:   rate,
		VAT:    core.Round2(ledger.VATEstimate(amount, rate)),
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	account, err := accountFrom(r)
	if err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	if err := s.svc.Clear(r.Context(), account); err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
