package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/axegao/axegaoshop/internal/app/entity"
	"github.com/axegao/axegaoshop/internal/app/logger"
	"github.com/axegao/axegaoshop/internal/app/payment"
	"github.com/axegao/axegaoshop/internal/app/storage"
)

type orderCreateRequest struct {
	Straight    bool   `json:"straight"`
	ParameterID int64  `json:"parameter_id"`
	Count       int    `json:"count"`
	Promocode   string `json:"promocode"`
	PaymentType string `json:"payment_type"`
	Email       string `json:"email"`
}

type waitingResponse struct {
	Status        string `json:"status"`
	Amount        string `json:"amount"`
	RemainingTime int64  `json:"remaining_time"`
}

type finishedOrderResponse struct {
	ID          int64              `json:"id"`
	Number      string             `json:"number"`
	ResultPrice string             `json:"result_price"`
	OrderData   []entity.OrderItem `json:"order_data"`
}

func (bh *BaseHandler) createOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var orderReq orderCreateRequest
		if err := json.NewDecoder(req.Body).Decode(&orderReq); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		if orderReq.PaymentType != entity.PaymentTypeSBP && orderReq.PaymentType != entity.PaymentTypeSiteBalance {
			http.Error(w, "INVALID_PAYMENT_TYPE", http.StatusBadRequest)
			return
		}
		if orderReq.Count <= 0 {
			orderReq.Count = 1
		}

		userID := currentUserID(req)
		ctx := req.Context()

		var promocodeID *int64
		var salePercent float64
		if orderReq.Promocode != "" {
			promocode, err := bh.repo.PromocodeByName(orderReq.Promocode)
			if err != nil || (promocode.ActivationsCount != -1 && promocode.ActivationsCount <= 0) {
				http.Error(w, "INVALID_PROMOCODE", http.StatusNotFound)
				return
			}
			promocodeID = &promocode.ID
			salePercent = promocode.SalePercent
		}

		var params []entity.OrderParameter
		if orderReq.Straight {
			if _, err := bh.repo.ParameterByID(orderReq.ParameterID); err != nil {
				http.Error(w, "PARAMETER_NOT_FOUND", http.StatusNotFound)
				return
			}
			params = []entity.OrderParameter{{ParameterID: orderReq.ParameterID, Count: orderReq.Count}}
		} else {
			cart, err := bh.repo.CartItems(userID)
			if err != nil {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				logger.Logger.Err(err).Msg("")
				return
			}
			if len(cart) == 0 {
				http.Error(w, "EMPTY_SHOP_CART", http.StatusNotFound)
				return
			}
			for _, item := range cart {
				params = append(params, entity.OrderParameter{ParameterID: item.ParameterID, Count: item.Count})
			}
		}

		// a fresh checkout supersedes any still-pending orders of the user
		amounts, err := bh.repo.CancelUserPendingOrders(userID)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("")
			return
		}
		for _, amount := range amounts {
			if err := bh.allocator.Release(ctx, payment.FingerprintOf(amount)); err != nil {
				logger.Logger.Err(err).Msg("")
			}
		}

		order, err := bh.repo.CreateOrder(entity.Order{
			UserID:      userID,
			PromocodeID: promocodeID,
			Straight:    orderReq.Straight,
			Email:       orderReq.Email,
			PaymentType: orderReq.PaymentType,
		}, params)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("")
			return
		}

		items, err := bh.repo.OrderPricedItems(order.ID)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("")
			return
		}
		base := payment.OrderBase(items, salePercent)

		if orderReq.PaymentType == entity.PaymentTypeSiteBalance {
			bh.payFromBalance(w, req, order, base)
			return
		}

		fp, err := bh.allocator.Allocate(ctx)
		if err != nil {
			http.Error(w, "PAYMENT_BUSY", http.StatusServiceUnavailable)
			logger.Logger.Err(err).Msg("")
			return
		}

		charge := payment.Charge(base, fp)
		if err := bh.repo.SetOrderPrice(order.ID, charge); err != nil {
			if rErr := bh.allocator.Release(ctx, fp); rErr != nil {
				logger.Logger.Err(rErr).Msg("")
			}
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("")
			return
		}
		order.ResultPrice = decimal.NewNullDecimal(charge)

		writeJSON(w, http.StatusCreated, order)
	}
}

// payFromBalance settles a site-balance order immediately: no fingerprint,
// no bank polling.
func (bh *BaseHandler) payFromBalance(w http.ResponseWriter, req *http.Request, order entity.Order, base decimal.Decimal) {
	if err := bh.repo.SetOrderPrice(order.ID, base); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		logger.Logger.Err(err).Msg("")
		return
	}
	order.ResultPrice = decimal.NewNullDecimal(base)

	if err := bh.repo.WithdrawBalance(order.UserID, base); err != nil {
		if errors.Is(err, storage.ErrInsufficientFunds) {
			if _, cErr := bh.settler.CancelOrder(req.Context(), order); cErr != nil {
				logger.Logger.Err(cErr).Msg("")
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "NOT_ENOUGH_BALANCE"})
			return
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		logger.Logger.Err(err).Msg("")
		return
	}

	items, err := bh.settler.Finalize(req.Context(), order)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		logger.Logger.Err(err).Msg("")
		return
	}

	writeJSON(w, http.StatusOK, finishedOrderResponse{
		ID:          order.ID,
		Number:      order.Number,
		ResultPrice: base.StringFixed(2),
		OrderData:   items,
	})
}

// checkOrder runs when the payer hits "check" on the payment page. While
// the transfer has not arrived the payer sees the exact amount still due
// and the time left before auto-cancellation.
func (bh *BaseHandler) checkOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		orderID, err := pathID(req, "id")
		if err != nil {
			http.Error(w, "Invalid order id", http.StatusBadRequest)
			return
		}

		order, err := bh.repo.OrderByID(orderID, currentUserID(req))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				http.Error(w, "ORDER_NOT_FOUND", http.StatusNotFound)
				return
			}
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("")
			return
		}

		switch order.Status {
		case entity.StatusCanceled:
			http.Error(w, "ORDER_CANCELED", http.StatusNotFound)
			return

		case entity.StatusFinished:
			items, err := bh.repo.OrderItems(order.ID)
			if err != nil {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				logger.Logger.Err(err).Msg("")
				return
			}
			writeJSON(w, http.StatusOK, finishedOrderResponse{
				ID:          order.ID,
				Number:      order.Number,
				ResultPrice: order.ResultPrice.Decimal.StringFixed(2),
				OrderData:   items,
			})
			return
		}

		// bank errors deliberately collapse into "waiting" for the payer;
		// the settler has already reported them to the operators
		paid, items, err := bh.settler.SettleOrder(req.Context(), order)
		if errors.Is(err, payment.ErrOrderCanceled) {
			// the sweeper canceled the order between the read above and
			// the settlement attempt
			http.Error(w, "ORDER_CANCELED", http.StatusNotFound)
			return
		}
		if err == nil && paid {
			writeJSON(w, http.StatusOK, finishedOrderResponse{
				ID:          order.ID,
				Number:      order.Number,
				ResultPrice: order.ResultPrice.Decimal.StringFixed(2),
				OrderData:   items,
			})
			return
		}

		writeJSON(w, http.StatusOK, waitingResponse{
			Status:        "waiting",
			Amount:        order.ResultPrice.Decimal.StringFixed(2),
			RemainingTime: remainingSeconds(order.CreatedAt, bh.pendingWindow),
		})
	}
}

func (bh *BaseHandler) cancelOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		orderID, err := pathID(req, "id")
		if err != nil {
			http.Error(w, "Invalid order id", http.StatusBadRequest)
			return
		}

		order, err := bh.repo.OrderByID(orderID, currentUserID(req))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				http.Error(w, "ORDER_NOT_FOUND", http.StatusNotFound)
				return
			}
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("")
			return
		}
		if order.Status != entity.StatusWaitingPayment {
			http.Error(w, "ORDER_ALREADY_FINISHED", http.StatusConflict)
			return
		}

		if _, err := bh.settler.CancelOrder(req.Context(), order); err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("")
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func remainingSeconds(createdAt time.Time, window time.Duration) int64 {
	remaining := window - time.Since(createdAt)
	if remaining < 0 {
		remaining = 0
	}
	return int64(remaining.Seconds())
}
