package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/axegao/axegaoshop/internal/app/entity"
	"github.com/axegao/axegaoshop/internal/app/logger"
	"github.com/axegao/axegaoshop/internal/app/payment"
)

type replenishCreateRequest struct {
	Amount      string `json:"amount"`
	PaymentType string `json:"payment_type"`
}

type replenishResponse struct {
	Number        string `json:"number"`
	ResultPrice   string `json:"result_price"`
	PaymentType   string `json:"payment_type"`
	Status        string `json:"status"`
	RemainingTime int64  `json:"remaining_time"`
}

func (bh *BaseHandler) createReplenish() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var replenishReq replenishCreateRequest
		if err := json.NewDecoder(req.Body).Decode(&replenishReq); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		if replenishReq.PaymentType != entity.PaymentTypeSBP {
			http.Error(w, "INVALID_PAYMENT_TYPE", http.StatusBadRequest)
			return
		}

		amount, err := decimal.NewFromString(replenishReq.Amount)
		if err != nil || !amount.IsPositive() {
			http.Error(w, "INVALID_AMOUNT", http.StatusBadRequest)
			return
		}

		ctx := req.Context()
		fp, err := bh.allocator.Allocate(ctx)
		if err != nil {
			http.Error(w, "PAYMENT_BUSY", http.StatusServiceUnavailable)
			logger.Logger.Err(err).Msg("")
			return
		}

		// the requested amount goes in verbatim, only the fingerprint on top
		charge := payment.Charge(amount.Round(2), fp)

		replenish, err := bh.repo.CreateReplenish(entity.Replenish{
			UserID:      currentUserID(req),
			ResultPrice: decimal.NewNullDecimal(charge),
			PaymentType: replenishReq.PaymentType,
		})
		if err != nil {
			if rErr := bh.allocator.Release(ctx, fp); rErr != nil {
				logger.Logger.Err(rErr).Msg("")
			}
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("")
			return
		}

		writeJSON(w, http.StatusCreated, replenishResponse{
			Number:        replenish.Number,
			ResultPrice:   charge.StringFixed(2),
			PaymentType:   replenish.PaymentType,
			Status:        replenish.Status,
			RemainingTime: remainingSeconds(replenish.CreatedAt, bh.pendingWindow),
		})
	}
}

func (bh *BaseHandler) checkReplenish() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		number := pathString(req, "number")

		replenish, err := bh.repo.ReplenishByNumber(number, currentUserID(req))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				http.Error(w, "NOT_FOUND", http.StatusNotFound)
				return
			}
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("")
			return
		}
		if replenish.Status != entity.StatusWaitingPayment {
			http.Error(w, "NOT_FOUND", http.StatusNotFound)
			return
		}

		paid, err := bh.settler.SettleReplenish(req.Context(), replenish)
		if err == nil && paid {
			replenish.Status = entity.StatusFinished
		}

		writeJSON(w, http.StatusOK, replenishResponse{
			Number:        replenish.Number,
			ResultPrice:   replenish.ResultPrice.Decimal.StringFixed(2),
			PaymentType:   replenish.PaymentType,
			Status:        replenish.Status,
			RemainingTime: remainingSeconds(replenish.CreatedAt, bh.pendingWindow),
		})
	}
}
