package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"

	"github.com/axegao/axegaoshop/internal/app/logger"
	"github.com/axegao/axegaoshop/internal/app/storage"
)

type key string

const (
	cookieName          = "session"
	cookiePath          = "/"
	userIDKey       key = "userID"
	signatureLength     = 32
	invalidCookie       = "Invalid cookie"
	invalidCredentials  = "Invalid credentials"
)

func signUserID(userID int64, secretKey string) string {
	userIDBytes := []byte(strconv.FormatInt(userID, 10))

	k := sha256.Sum256([]byte(secretKey))
	h := hmac.New(sha256.New, k[:])
	h.Write(userIDBytes)
	sign := h.Sum(nil)

	return hex.EncodeToString(append(userIDBytes, sign...))
}

func checkSignature(cookieValue string, secretKey []byte) (int64, error) {
	session, err := hex.DecodeString(cookieValue)
	if err != nil {
		return 0, err
	}

	if len(session) <= signatureLength {
		return 0, errInvalidCookieLength
	}

	userIDLength := len(session) - signatureLength
	userID := session[:userIDLength]

	k := sha256.Sum256(secretKey)
	h := hmac.New(sha256.New, k[:])
	h.Write(userID)
	sign := h.Sum(nil)

	if !hmac.Equal(sign, session[userIDLength:]) {
		return 0, errInvalidSignature
	}
	return strconv.ParseInt(string(userID), 10, 64)
}

func authHandle(secretKey string) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionCookie, err := r.Cookie(cookieName)
			if err != nil {
				http.Error(w, invalidCredentials, http.StatusUnauthorized)
				return
			}

			userID, err := checkSignature(sessionCookie.Value, []byte(secretKey))
			if err != nil {
				http.Error(w, invalidCookie, http.StatusUnauthorized)
				logger.Logger.Err(err).Msg("")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func adminHandle(repo storage.Repository) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := repo.UserByID(currentUserID(r))
			if err != nil || !user.IsAdmin {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			h.ServeHTTP(w, r)
		})
	}
}

func currentUserID(r *http.Request) int64 {
	userID, _ := r.Context().Value(userIDKey).(int64)
	return userID
}
