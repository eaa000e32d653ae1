package api

import (
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/fundchain-core/internal/service"
	"github.com/fundchain-core/internal/types"
	"github.com/gorilla/mux"
)

// handleHealth reports chain connectivity. The endpoint answers 200 as long
// as at least one chain is reachable; a fully disconnected core answers 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snapshot := s.health.HealthSnapshot()

	status := http.StatusOK
	if !snapshot.OverallHealthy {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, snapshot)
}

type createFundraiserRequest struct {
	ChainID  int64  `json:"chainId"`
	Name     string `json:"name"`
	Goal     string `json:"goal"`
	Deadline int64  `json:"deadline"`
}

func (s *Server) handleCreateFundraiser(w http.ResponseWriter, r *http.Request) {
	var req createFundraiserRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "name is required", nil)
		return
	}
	goal, ok := new(big.Int).SetString(req.Goal, 10)
	if !ok || goal.Sign() <= 0 {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "goal must be a positive base-unit integer", nil)
		return
	}
	if req.Deadline <= time.Now().Unix() {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "deadline must be in the future", nil)
		return
	}

	fundraiser, err := s.fundraiserService.CreateFundraiserOnChain(r.Context(), service.CreateFundraiserInput{
		ChainID:  types.ChainID(req.ChainID),
		Name:     req.Name,
		Goal:     goal,
		Deadline: time.Unix(req.Deadline, 0).UTC(),
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, fundraiser)
}

type verifyTxRequest struct {
	ChainID int64  `json:"chainId"`
	TxHash  string `json:"txHash"`
}

func (s *Server) handleVerifyFundraiser(w http.ResponseWriter, r *http.Request) {
	var req verifyTxRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.TxHash == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "txHash is required", nil)
		return
	}

	fundraiser, created, err := s.fundraiserService.RecordFundraiserFromTransaction(r.Context(), types.ChainID(req.ChainID), req.TxHash)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, map[string]interface{}{
		"created":    created,
		"fundraiser": fundraiser,
	})
}

func (s *Server) handleSyncFundraiser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	fundraiser, err := s.fundraiserService.SyncFundraiserFromChain(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, fundraiser)
}

func (s *Server) handleGetLiveFundraiser(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	chainID := parseChainIDParam(r)

	data, err := s.fundraiserService.GetLiveFundraiserData(r.Context(), chainID, address)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, data)
}

type verifyDonationRequest struct {
	FundraiserID string `json:"fundraiserId"`
	ChainID      int64  `json:"chainId"`
	TxHash       string `json:"txHash"`
}

func (s *Server) handleVerifyDonation(w http.ResponseWriter, r *http.Request) {
	var req verifyDonationRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.FundraiserID == "" || req.TxHash == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "fundraiserId and txHash are required", nil)
		return
	}

	donation, created, err := s.donationService.RecordDonationFromTransaction(r.Context(), service.RecordDonationInput{
		FundraiserID: req.FundraiserID,
		TxHash:       req.TxHash,
		ChainID:      types.ChainID(req.ChainID),
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, map[string]interface{}{
		"created":  created,
		"donation": donation,
	})
}

func (s *Server) handleVerifyStake(w http.ResponseWriter, r *http.Request) {
	var req verifyTxRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.TxHash == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "txHash is required", nil)
		return
	}

	stake, created, err := s.stakeService.RecordStakeFromTransaction(r.Context(), types.ChainID(req.ChainID), req.TxHash)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, map[string]interface{}{
		"created": created,
		"stake":   stake,
	})
}

func (s *Server) handleVerifyUnstake(w http.ResponseWriter, r *http.Request) {
	var req verifyTxRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.TxHash == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "txHash is required", nil)
		return
	}

	stakes, err := s.stakeService.RecordUnstakeFromTransaction(r.Context(), types.ChainID(req.ChainID), req.TxHash)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"stakes": stakes,
	})
}

func (s *Server) handleSyncStake(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	stake, err := s.stakeService.SyncStakeFromChain(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stake)
}

func (s *Server) handleGetStakingPool(w http.ResponseWriter, r *http.Request) {
	data, err := s.stakeService.GetStakingPoolData(r.Context(), parseChainIDParam(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, data)
}

func (s *Server) handleGetUserStaking(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	info, err := s.stakeService.GetUserStakingInfo(r.Context(), parseChainIDParam(r), address)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// parseChainIDParam reads the optional chainId query parameter; zero means
// the configured default chain.
func parseChainIDParam(r *http.Request) types.ChainID {
	raw := r.URL.Query().Get("chainId")
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return types.ChainID(id)
}
