package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/axegao/axegaoshop/internal/app/entity"
	"github.com/axegao/axegaoshop/internal/app/logger"
	"github.com/axegao/axegaoshop/internal/app/storage"
)

func (bh *BaseHandler) listProducts() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		products, err := bh.repo.Products()
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("")
			return
		}

		writeJSON(w, http.StatusOK, products)
	}
}

func (bh *BaseHandler) getProduct() http.HandlerFunc {
	type productResponse struct {
		entity.Product
		Parameters []entity.Parameter `json:"parameters"`
	}

	return func(w http.ResponseWriter, req *http.Request) {
		productID, err := pathID(req, "id")
		if err != nil {
			http.Error(w, "Invalid product id", http.StatusBadRequest)
			return
		}

		product, parameters, err := bh.repo.ProductByID(productID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				http.Error(w, "PRODUCT_NOT_FOUND", http.StatusNotFound)
				return
			}
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("")
			return
		}

		writeJSON(w, http.StatusOK, productResponse{Product: product, Parameters: parameters})
	}
}

func (bh *BaseHandler) createProduct() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var product entity.Product
		if err := json.NewDecoder(req.Body).Decode(&product); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		if product.Title == "" {
			http.Error(w, "Title is required", http.StatusBadRequest)
			return
		}

		productID, err := bh.repo.CreateProduct(product)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("")
			return
		}

		writeJSON(w, http.StatusCreated, map[string]int64{"id": productID})
	}
}

func (bh *BaseHandler) createParameter() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		productID, err := pathID(req, "id")
		if err != nil {
			http.Error(w, "Invalid product id", http.StatusBadRequest)
			return
		}

		var parameter entity.Parameter
		if err := json.NewDecoder(req.Body).Decode(&parameter); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		parameter.ProductID = productID
		if parameter.GiveType == "" {
			parameter.GiveType = entity.GiveTypeString
		}

		parameterID, err := bh.repo.CreateParameter(parameter)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("")
			return
		}

		writeJSON(w, http.StatusCreated, map[string]int64{"id": parameterID})
	}
}

func (bh *BaseHandler) addParameterItems() http.HandlerFunc {
	type itemsRequest struct {
		Values []string `json:"values"`
	}

	return func(w http.ResponseWriter, req *http.Request) {
		productID, err := pathID(req, "id")
		if err != nil {
			http.Error(w, "Invalid product id", http.StatusBadRequest)
			return
		}
		parameterID, err := pathID(req, "parameterID")
		if err != nil {
			http.Error(w, "Invalid parameter id", http.StatusBadRequest)
			return
		}

		parameter, err := bh.repo.ParameterByID(parameterID)
		if err != nil || parameter.ProductID != productID {
			http.Error(w, "PARAMETER_NOT_FOUND", http.StatusNotFound)
			return
		}

		var items itemsRequest
		if err := json.NewDecoder(req.Body).Decode(&items); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		if len(items.Values) == 0 {
			http.Error(w, "Values are required", http.StatusBadRequest)
			return
		}

		if err := bh.repo.AddParameterItems(parameterID, items.Values); err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("")
			return
		}
		w.WriteHeader(http.StatusCreated)
	}
}

func (bh *BaseHandler) createPromocode() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var promocode entity.Promocode
		if err := json.NewDecoder(req.Body).Decode(&promocode); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		if promocode.Name == "" || promocode.SalePercent <= 0 || promocode.SalePercent > 100 {
			http.Error(w, "Invalid promocode", http.StatusBadRequest)
			return
		}

		promocodeID, err := bh.repo.CreatePromocode(promocode)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("")
			return
		}

		writeJSON(w, http.StatusCreated, map[string]int64{"id": promocodeID})
	}
}

func (bh *BaseHandler) listReviews() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		productID, err := pathID(req, "id")
		if err != nil {
			http.Error(w, "Invalid product id", http.StatusBadRequest)
			return
		}

		reviews, err := bh.repo.ProductReviews(productID)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("")
			return
		}

		writeJSON(w, http.StatusOK, reviews)
	}
}

func (bh *BaseHandler) createReview() http.HandlerFunc {
	type reviewRequest struct {
		Rate int    `json:"rate"`
		Text string `json:"text"`
	}

	return func(w http.ResponseWriter, req *http.Request) {
		productID, err := pathID(req, "id")
		if err != nil {
			http.Error(w, "Invalid product id", http.StatusBadRequest)
			return
		}

		var review reviewRequest
		if err := json.NewDecoder(req.Body).Decode(&review); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		if review.Rate < 1 || review.Rate > 5 {
			http.Error(w, "Rate must be 1..5", http.StatusBadRequest)
			return
		}

		userID := currentUserID(req)

		// reviews are for buyers only
		orderID, err := bh.repo.PurchasedOrderID(userID, productID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				http.Error(w, "PRODUCT_NOT_PURCHASED", http.StatusForbidden)
				return
			}
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("")
			return
		}

		reviewID, err := bh.repo.CreateReview(entity.Review{
			UserID:    userID,
			ProductID: productID,
			OrderID:   orderID,
			Rate:      review.Rate,
			Text:      review.Text,
		})
		if err != nil {
			if errors.Is(err, storage.ErrReviewExists) {
				http.Error(w, "REVIEW_EXISTS", http.StatusConflict)
				return
			}
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("")
			return
		}

		writeJSON(w, http.StatusCreated, map[string]int64{"id": reviewID})
	}
}
