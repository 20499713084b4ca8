package handler

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/brokerage/internal/domain"
)

// createOrderRequest is the POST /api/orders body.
type createOrderRequest struct {
	UserID       int64            `json:"userId"`
	InstrumentID int64            `json:"instrumentId"`
	Side         string           `json:"side"`
	Type         string           `json:"type"`
	Size         *decimal.Decimal `json:"size"`
	Price        *decimal.Decimal `json:"price"`
	TotalAmount  *decimal.Decimal `json:"totalAmount"`
}

func (req createOrderRequest) toDomain() domain.OrderRequest {
	return domain.OrderRequest{
		UserID:       req.UserID,
		InstrumentID: req.InstrumentID,
		Side:         domain.OrderSide(req.Side),
		Type:         domain.OrderType(req.Type),
		Size:         req.Size,
		Price:        req.Price,
		TotalAmount:  req.TotalAmount,
	}
}

// cancelOrderRequest is the POST /api/orders/{id}/cancel body.
type cancelOrderRequest struct {
	UserID int64 `json:"userId"`
}

type orderResponse struct {
	ID              int64        `json:"id"`
	InstrumentID    int64        `json:"instrumentId"`
	UserID          int64        `json:"userId"`
	Side            string       `json:"side"`
	Type            string       `json:"type"`
	Size            int64        `json:"size"`
	Price           *json.Number `json:"price"`
	Status          string       `json:"status"`
	RejectionReason *string      `json:"rejectionReason"`
	Datetime        string       `json:"datetime"`
}

func newOrderResponse(o domain.Order) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		InstrumentID:    o.InstrumentID,
		UserID:          o.UserID,
		Side:            string(o.Side),
		Type:            string(o.Type),
		Size:            o.Size,
		Status:          string(o.Status),
		RejectionReason: o.RejectionReason,
		Datetime:        o.CreatedAt.UTC().Format(time.RFC3339),
	}
	if o.Price.Valid {
		p := money(o.Price.Decimal)
		resp.Price = &p
	}
	return resp
}

func newOrderResponses(orders []domain.Order) []orderResponse {
	out := make([]orderResponse, len(orders))
	for i, o := range orders {
		out[i] = newOrderResponse(o)
	}
	return out
}

type positionResponse struct {
	InstrumentID     int64       `json:"instrumentId"`
	Ticker           string      `json:"ticker"`
	Name             string      `json:"name"`
	Quantity         int64       `json:"quantity"`
	MarketValue      json.Number `json:"marketValue"`
	AveragePrice     json.Number `json:"averagePrice"`
	DailyReturn      json.Number `json:"dailyReturn"`
	ReturnPercentage json.Number `json:"returnPercentage"`
}

type portfolioResponse struct {
	TotalValue    json.Number        `json:"totalValue"`
	AvailableCash json.Number        `json:"availableCash"`
	Positions     []positionResponse `json:"positions"`
}

func newPortfolioResponse(p domain.Portfolio) portfolioResponse {
	resp := portfolioResponse{
		TotalValue:    money(p.TotalValue),
		AvailableCash: money(p.AvailableCash),
		Positions:     make([]positionResponse, len(p.Positions)),
	}
	for i, pos := range p.Positions {
		resp.Positions[i] = positionResponse{
			InstrumentID:     pos.InstrumentID,
			Ticker:           pos.Ticker,
			Name:             pos.Name,
			Quantity:         pos.Quantity,
			MarketValue:      money(pos.MarketValue),
			AveragePrice:     money(pos.AveragePrice),
			DailyReturn:      money(pos.DailyReturn),
			ReturnPercentage: money(pos.ReturnPercentage),
		}
	}
	return resp
}

type instrumentResponse struct {
	ID     int64  `json:"id"`
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
	Type   string `json:"type"`
}

func newInstrumentResponse(inst domain.Instrument) instrumentResponse {
	return instrumentResponse{ID: inst.ID, Ticker: inst.Ticker, Name: inst.Name, Type: inst.Kind}
}

type searchResponse struct {
	Data  []instrumentResponse `json:"data"`
	Total int64                `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}
