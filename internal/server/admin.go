package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/raphaelgruber/contractflow/internal/models"
	"github.com/raphaelgruber/contractflow/internal/storage"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

type reviewQueueItem struct {
	ReviewID   string    `json:"review_id"`
	ContractID string    `json:"contract_id"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason"`
	Sender     string    `json:"sender"`
	Subject    string    `json:"subject"`
	VendorName string    `json:"vendor_name"`
	TotalValue float64   `json:"total_value"`
	Risk       string    `json:"risk"`
	Violations []string  `json:"violations"`
	CreatedAt  time.Time `json:"created_at"`
}

type approvedContract struct {
	ContractID       string    `json:"contract_id"`
	Status           string    `json:"status"`
	RouteDecision    string    `json:"route_decision"`
	Sender           string    `json:"sender"`
	Subject          string    `json:"subject"`
	VendorName       string    `json:"vendor_name"`
	TotalValue       float64   `json:"total_value"`
	ConfidenceScore  float64   `json:"extraction_confidence_score"`
	RiskLevel        string    `json:"risk_level"`
	PolicyViolations []string  `json:"policy_violations"`
	ApprovedAt       time.Time `json:"approved_at"`
	CreatedAt        time.Time `json:"created_at"`
}

type approvedContractsResponse struct {
	Count  int                `json:"count"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
	Items  []approvedContract `json:"items"`
}

type resolveResponse struct {
	Status     string `json:"status"`
	ReviewID   string `json:"review_id"`
	ContractID string `json:"contract_id"`
}

func (s *Server) handleReviewQueue(w http.ResponseWriter, r *http.Request) {
	items, err := s.opts.Reviews.Pending(r.Context())
	if err != nil {
		s.logger.Error("failed to list review queue", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list review queue")
		return
	}

	out := make([]reviewQueueItem, 0, len(items))
	for _, item := range items {
		row := reviewQueueItem{
			ReviewID:   item.ID,
			ContractID: item.ContractID,
			Status:     item.Status,
			Reason:     item.Reason,
			Violations: []string{},
			CreatedAt:  item.CreatedAt,
		}
		if c := item.Contract; c != nil {
			row.Sender = c.Sender
			row.Subject = c.Subject
			row.VendorName = c.ExtractedData.VendorName
			row.TotalValue = c.ExtractedData.TotalValue
			row.Risk = c.ValidationResult.RiskLevel
			if c.ValidationResult.PolicyViolations != nil {
				row.Violations = c.ValidationResult.PolicyViolations
			}
		}
		out = append(out, row)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleApprovedContracts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultPageLimit)
	if err != nil || limit < 1 || limit > maxPageLimit {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "offset must be non-negative")
		return
	}

	contracts, err := s.opts.Reviews.Approved(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("failed to list approved contracts", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list approved contracts")
		return
	}

	items := make([]approvedContract, 0, len(contracts))
	for _, c := range contracts {
		violations := c.ValidationResult.PolicyViolations
		if violations == nil {
			violations = []string{}
		}
		items = append(items, approvedContract{
			ContractID:       c.ID,
			Status:           c.Status,
			RouteDecision:    c.Route,
			Sender:           c.Sender,
			Subject:          c.Subject,
			VendorName:       c.ExtractedData.VendorName,
			TotalValue:       c.ExtractedData.TotalValue,
			ConfidenceScore:  c.ExtractedData.ConfidenceScore,
			RiskLevel:        c.ValidationResult.RiskLevel,
			PolicyViolations: violations,
			ApprovedAt:       c.UpdatedAt,
			CreatedAt:        c.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, approvedContractsResponse{
		Count:  len(items),
		Limit:  limit,
		Offset: offset,
		Items:  items,
	})
}

func (s *Server) handleResolve(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var (
			item *models.ReviewItem
			err  error
		)
		if approve {
			item, err = s.opts.Reviews.Approve(r.Context(), id)
		} else {
			item, err = s.opts.Reviews.Reject(r.Context(), id)
		}

		switch {
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, http.StatusNotFound, "Review item not found")
		case errors.Is(err, storage.ErrReviewNotPending):
			writeError(w, http.StatusBadRequest, "Review item is not pending")
		case err != nil:
			s.logger.Error("failed to resolve review", "review_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to resolve review item")
		default:
			writeJSON(w, http.StatusOK, resolveResponse{
				Status:     item.Status,
				ReviewID:   item.ID,
				ContractID: item.ContractID,
			})
		}
	}
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
