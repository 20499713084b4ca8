package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/brokerage/internal/domain"
)

// PortfolioService defines what the portfolio handler needs.
type PortfolioService interface {
	Valuate(ctx context.Context, userID int64) (domain.Portfolio, error)
}

// PortfolioHandler serves portfolio valuation.
type PortfolioHandler struct {
	portfolios PortfolioService
	logger     *slog.Logger
}

// NewPortfolioHandler creates a PortfolioHandler.
func NewPortfolioHandler(portfolios PortfolioService, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{portfolios: portfolios, logger: logger}
}

// GetPortfolio returns the user's cash, positions and total value.
// GET /api/portfolio/{userId}
func (h *PortfolioHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	p, err := h.portfolios.Valuate(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, h.logger, "get portfolio", err)
		return
	}

	writeJSON(w, http.StatusOK, newPortfolioResponse(p))
}
