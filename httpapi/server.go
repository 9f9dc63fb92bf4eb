package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"coliseum/models"
	"coliseum/service"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Server exposes the engine operations over JSON HTTP. Identity arrives
// as user ids already authenticated upstream.
type Server struct {
	ledger     service.LedgerService
	battles    service.BattleService
	shows      service.ShowService
	moderation service.ModerationService
}

// NewServer creates a new API server
func NewServer(ledger service.LedgerService, battles service.BattleService, shows service.ShowService, moderation service.ModerationService) *Server {
	return &Server{
		ledger:     ledger,
		battles:    battles,
		shows:      shows,
		moderation: moderation,
	}
}

// Register mounts all API routes on the mux
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/coins/credit", s.post(s.credit))
	mux.HandleFunc("/coins/debit", s.post(s.debit))
	mux.HandleFunc("/coins/transfer", s.post(s.transfer))
	mux.HandleFunc("/coins/balance", s.get(s.balance))
	mux.HandleFunc("/coins/history", s.get(s.history))
	mux.HandleFunc("/coins/stats", s.get(s.stats))

	mux.HandleFunc("/users/lookup", s.get(s.userLookup))

	mux.HandleFunc("/battles/start", s.post(s.startBattle))
	mux.HandleFunc("/battles/gift", s.post(s.applyGift))
	mux.HandleFunc("/battles/complete", s.post(s.completeBattle))

	mux.HandleFunc("/shows/open", s.post(s.openShow))
	mux.HandleFunc("/shows/close", s.post(s.closeShow))
	mux.HandleFunc("/shows/current", s.get(s.currentShow))
	mux.HandleFunc("/shows/waitlist", s.get(s.waitlist))
	mux.HandleFunc("/shows/join", s.post(s.joinWaitlist))
	mux.HandleFunc("/shows/leave", s.post(s.leaveWaitlist))
	mux.HandleFunc("/shows/vote", s.post(s.castVote))
	mux.HandleFunc("/shows/performance/start", s.post(s.startPerformance))
	mux.HandleFunc("/shows/performance/end", s.post(s.endPerformance))

	mux.HandleFunc("/moderation/fee", s.post(s.applyFee))
	mux.HandleFunc("/moderation/history", s.get(s.moderationHistory))
}

type handlerFunc func(w http.ResponseWriter, r *http.Request)

func (s *Server) post(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
			return
		}
		h(w, r)
	}
}

func (s *Server) get(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeServiceError maps the service error taxonomy to HTTP statuses
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, service.ErrInsufficientFunds):
		writeError(w, http.StatusPaymentRequired, err)
	case errors.Is(err, service.ErrPreconditionFailed), errors.Is(err, service.ErrConflict):
		writeError(w, http.StatusConflict, err)
	default:
		log.WithFields(log.Fields{"error": err}).Error("Request failed")
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func parseBody(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

func parseUserID(r *http.Request, param string) (uuid.UUID, error) {
	return uuid.Parse(r.URL.Query().Get(param))
}

type amountRequest struct {
	UserID         uuid.UUID              `json:"user_id"`
	Amount         int64                  `json:"amount"`
	CoinKind       models.CoinKind        `json:"coin_kind"`
	Type           models.TransactionType `json:"type"`
	IdempotencyKey *string                `json:"idempotency_key"`
	Metadata       map[string]any         `json:"metadata"`
}

func (s *Server) credit(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := parseBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	entry, err := s.ledger.Credit(r.Context(), req.UserID, req.Amount, req.CoinKind, req.Type, req.IdempotencyKey, req.Metadata)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) debit(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := parseBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	entry, err := s.ledger.Debit(r.Context(), req.UserID, req.Amount, req.CoinKind, req.Type, req.IdempotencyKey, req.Metadata)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) transfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FromUserID uuid.UUID       `json:"from_user_id"`
		ToUserID   uuid.UUID       `json:"to_user_id"`
		Amount     int64           `json:"amount"`
		CoinKind   models.CoinKind `json:"coin_kind"`
		Metadata   map[string]any  `json:"metadata"`
	}
	if err := parseBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sent, received, err := s.ledger.Transfer(r.Context(), req.FromUserID, req.ToUserID, req.Amount, req.CoinKind, req.Metadata)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sent": sent, "received": received})
}

func (s *Server) balance(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r, "user_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	balance, err := s.ledger.GetBalance(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r, "user_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var filter models.HistoryFilter
	if t := r.URL.Query().Get("type"); t != "" {
		txType := models.TransactionType(t)
		filter.Type = &txType
	}
	if k := r.URL.Query().Get("coin_kind"); k != "" {
		kind := models.CoinKind(k)
		filter.CoinKind = &kind
	}
	entries, err := s.ledger.GetHistory(r.Context(), userID, filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r, "user_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	stats, err := s.ledger.GetStats(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) userLookup(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	user, err := s.ledger.GetUserByUsername(r.Context(), username)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) startBattle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HostID             uuid.UUID  `json:"host_id"`
		ChallengerID       uuid.UUID  `json:"challenger_id"`
		HostStreamID       *uuid.UUID `json:"host_stream_id"`
		ChallengerStreamID *uuid.UUID `json:"challenger_stream_id"`
	}
	if err := parseBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	battle, err := s.battles.Start(r.Context(), req.HostID, req.ChallengerID, req.HostStreamID, req.ChallengerStreamID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, battle)
}

func (s *Server) applyGift(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BattleID uuid.UUID         `json:"battle_id"`
		SenderID uuid.UUID         `json:"sender_id"`
		Side     models.BattleSide `json:"side"`
		Amount   int64             `json:"amount"`
		CoinKind models.CoinKind   `json:"coin_kind"`
	}
	if err := parseBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	battle, err := s.battles.ApplyGift(r.Context(), req.BattleID, req.SenderID, req.Side, req.Amount, req.CoinKind)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, battle)
}

func (s *Server) completeBattle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BattleID uuid.UUID `json:"battle_id"`
	}
	if err := parseBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := s.battles.Complete(r.Context(), req.BattleID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) openShow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EntryFee int64 `json:"entry_fee"`
	}
	if err := parseBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	show, err := s.shows.OpenShow(r.Context(), req.EntryFee)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, show)
}

func (s *Server) closeShow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShowID uuid.UUID `json:"show_id"`
	}
	if err := parseBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.shows.CloseShow(r.Context(), req.ShowID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) currentShow(w http.ResponseWriter, r *http.Request) {
	show, err := s.shows.GetCurrentShow(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if show == nil {
		writeError(w, http.StatusNotFound, errors.New("no active show"))
		return
	}
	writeJSON(w, http.StatusOK, show)
}

func (s *Server) waitlist(w http.ResponseWriter, r *http.Request) {
	showID, err := uuid.Parse(r.URL.Query().Get("show_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	entries, err := s.shows.GetWaitlist(r.Context(), showID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) joinWaitlist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID uuid.UUID `json:"user_id"`
	}
	if err := parseBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	entry, err := s.shows.JoinWaitlist(r.Context(), req.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) leaveWaitlist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID uuid.UUID `json:"user_id"`
		ShowID uuid.UUID `json:"show_id"`
	}
	if err := parseBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.shows.LeaveWaitlist(r.Context(), req.UserID, req.ShowID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) castVote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShowID   uuid.UUID       `json:"show_id"`
		EntryID  int64           `json:"entry_id"`
		VoterID  uuid.UUID       `json:"voter_id"`
		VoteType models.VoteType `json:"vote_type"`
	}
	if err := parseBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tally, err := s.shows.CastVote(r.Context(), req.ShowID, req.EntryID, req.VoterID, req.VoteType)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tally)
}

func (s *Server) startPerformance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShowID      uuid.UUID `json:"show_id"`
		PerformerID uuid.UUID `json:"performer_id"`
	}
	if err := parseBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.shows.StartPerformance(r.Context(), req.ShowID, req.PerformerID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) endPerformance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShowID      uuid.UUID `json:"show_id"`
		PerformerID uuid.UUID `json:"performer_id"`
	}
	if err := parseBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := s.shows.EndPerformance(r.Context(), req.ShowID, req.PerformerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) applyFee(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OfficerID  uuid.UUID                   `json:"officer_id"`
		TargetID   uuid.UUID                   `json:"target_id"`
		ActionType models.ModerationActionType `json:"action_type"`
		FeeAmount  int64                       `json:"fee_amount"`
		Reason     *string                     `json:"reason"`
		StreamID   *uuid.UUID                  `json:"stream_id"`
	}
	if err := parseBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := s.moderation.ApplyFee(r.Context(), req.OfficerID, req.TargetID, req.ActionType, req.FeeAmount, req.Reason, req.StreamID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) moderationHistory(w http.ResponseWriter, r *http.Request) {
	targetID, err := parseUserID(r, "target_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := s.moderation.GetHistory(r.Context(), targetID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}
