package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"golang.org/x/crypto/bcrypt"

	"github.com/axegao/axegaoshop/internal/app/logger"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (bh *BaseHandler) register() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var creds credentials
		if err := json.NewDecoder(req.Body).Decode(&creds); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		if creds.Email == "" || creds.Password == "" {
			http.Error(w, "Email and password are required", http.StatusBadRequest)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("")
			return
		}

		userID, err := bh.repo.CreateUser(creds.Email, string(hash))
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) {
				http.Error(w, "Email already in use", http.StatusConflict)
				return
			}
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("")
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:  cookieName,
			Value: signUserID(userID, bh.secretKey),
			Path:  cookiePath,
		})
		w.WriteHeader(http.StatusOK)
	}
}

func (bh *BaseHandler) login() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var creds credentials
		if err := json.NewDecoder(req.Body).Decode(&creds); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}

		user, err := bh.repo.UserByEmail(creds.Email)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				http.Error(w, invalidCredentials, http.StatusUnauthorized)
				return
			}
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("")
			return
		}

		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)) != nil {
			http.Error(w, invalidCredentials, http.StatusUnauthorized)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:  cookieName,
			Value: signUserID(user.ID, bh.secretKey),
			Path:  cookiePath,
		})
		w.WriteHeader(http.StatusOK)
	}
}

func (bh *BaseHandler) getBalance() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		user, err := bh.repo.UserByID(currentUserID(req))
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("")
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"balance": user.Balance.StringFixed(2)})
	}
}

func (bh *BaseHandler) getReplenishes() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		replenishes, err := bh.repo.FinishedReplenishes(currentUserID(req))
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("")
			return
		}

		writeJSON(w, http.StatusOK, replenishes)
	}
}
