package httpapi

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jensholdgaard/zoo-auction/internal/auction"
	"github.com/jensholdgaard/zoo-auction/internal/catalog"
	"github.com/jensholdgaard/zoo-auction/internal/telemetry"
)

type bidRequest struct {
	ParticipantID string `json:"participant_id"`
	Amount        int    `json:"amount"`
}

type bidResponse struct {
	Round    auction.RoundView   `json:"round"`
	Extended bool                `json:"extended,omitempty"`
	Resolved *auction.Resolution `json:"resolved,omitempty"`
}

type claimRequest struct {
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
}

type initializeRequest struct {
	Stake int `json:"stake,omitempty"`
}

type roundHistory struct {
	auction.RoundView
	Bids []auction.Bid `json:"bids"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleStandings(w http.ResponseWriter, r *http.Request) {
	standings, err := s.ctrl.Standings()
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, standings)
}

func (s *Server) handleRounds(w http.ResponseWriter, r *http.Request) {
	rounds, err := s.ctrl.Rounds(r.Context())
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, rounds)
}

func (s *Server) handleRound(w http.ResponseWriter, r *http.Request) {
	round, err := s.ctrl.RoundHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, roundHistory{RoundView: round.View(), Bids: round.Bids})
}

func (s *Server) handleBid(w http.ResponseWriter, r *http.Request) {
	var req bidRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	upd, err := s.ctrl.SubmitBid(r.Context(), req.ParticipantID, req.Amount)
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	telemetry.LogWithTrace(r.Context(), s.logger).DebugContext(r.Context(), "bid accepted",
		slog.String("participant_id", req.ParticipantID),
		slog.Int("amount", req.Amount),
		slog.String("round_id", upd.Round.ID),
	)
	writeJSON(w, http.StatusOK, bidResponse{Round: upd.Round, Extended: upd.Extended, Resolved: upd.Resolved})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "name is required")
		return
	}
	if err := s.ctrl.Claim(r.Context(), req.ParticipantID, req.Name); err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if err := readJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	params := s.opts.Game
	if req.Stake != 0 {
		params.Stake = req.Stake
	}
	if params.Stake <= 0 {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("stake must be positive, got %d", params.Stake))
		return
	}
	if err := s.ctrl.Initialize(r.Context(), params); err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleStartTier(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.PathValue("tier"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_tier", "tier must be a number")
		return
	}
	if err := s.ctrl.StartTier(r.Context(), catalog.Tier(n)); err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.StopAuction(r.Context()); err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Finish(r.Context()); err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Reset(r.Context()); err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}
