package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/axegao/axegaoshop/internal/app/logger"
)

func (bh *BaseHandler) getCart() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		items, err := bh.repo.CartItems(currentUserID(req))
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("")
			return
		}

		writeJSON(w, http.StatusOK, items)
	}
}

func (bh *BaseHandler) addToCart() http.HandlerFunc {
	type cartRequest struct {
		ParameterID int64 `json:"parameter_id"`
		Count       int   `json:"count"`
	}

	return func(w http.ResponseWriter, req *http.Request) {
		var item cartRequest
		if err := json.NewDecoder(req.Body).Decode(&item); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		if item.Count <= 0 {
			item.Count = 1
		}

		if _, err := bh.repo.ParameterByID(item.ParameterID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				http.Error(w, "PARAMETER_NOT_FOUND", http.StatusNotFound)
				return
			}
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("")
			return
		}

		if err := bh.repo.AddCartItem(currentUserID(req), item.ParameterID, item.Count); err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("")
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (bh *BaseHandler) removeFromCart() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		parameterID, err := pathID(req, "parameterID")
		if err != nil {
			http.Error(w, "Invalid parameter id", http.StatusBadRequest)
			return
		}

		if err := bh.repo.RemoveCartItem(currentUserID(req), parameterID); err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("")
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
