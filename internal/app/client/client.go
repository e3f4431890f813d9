package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const (
	authLoginPath        = "/api/v2/auth_login"
	clientOperationsPath = "/api/v2/clientOperations"

	refreshCookieName = "__Secure-refresh-token"
	sessionCookieName = "__OBANK_session"

	operationsPerPage = 100
	effectCredit      = "EFFECT_CREDIT"
	statusSuccess     = "success"

	userAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:122.0) Gecko/20100101 Firefox/122.0"
)

// ErrUnauthenticated means the bank session is missing or was rejected.
// Re-login is not automatic: the session comes from a stored refresh
// credential and an operator has to fix it when that goes stale.
var ErrUnauthenticated = errors.New("bank session is not established")

// Operation is one entry of the bank's transaction history. Read-only,
// amounts arrive in minor units.
type Operation struct {
	ID            string    `json:"id"`
	OperationID   string    `json:"operationId"`
	Purpose       string    `json:"purpose"`
	Time          time.Time `json:"time"`
	MerchantName  string    `json:"merchantName"`
	Status        string    `json:"status"`
	AccountAmount int64     `json:"accountAmount"`
}

func (o Operation) Amount() decimal.Decimal {
	return decimal.New(o.AccountAmount, -2)
}

type Client interface {
	Login(ctx context.Context) error
	HasPayment(ctx context.Context, amount decimal.Decimal, notBefore time.Time) (bool, error)
}

type cli struct {
	host         string
	pinCode      string
	refreshToken string
	httpClient   *http.Client

	mu           sync.Mutex
	sessionToken string
}

func NewCli(host string, pinCode string, refreshToken string, timeout int) Client {
	client := &http.Client{
		Timeout: time.Duration(timeout) * time.Second,
	}
	return &cli{
		host:         host,
		pinCode:      pinCode,
		refreshToken: refreshToken,
		httpClient:   client,
	}
}

// Login exchanges the refresh credential and PIN for a session token
// carried in the response cookies.
func (c *cli) Login(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{"pincode": c.pinCode})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+authLoginPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: c.refreshToken})

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: login responded %d", ErrUnauthenticated, res.StatusCode)
	}

	for _, cookie := range res.Cookies() {
		if cookie.Name == sessionCookieName {
			c.mu.Lock()
			c.sessionToken = cookie.Value
			c.mu.Unlock()
			return nil
		}
	}
	return fmt.Errorf("%w: no session cookie in login response", ErrUnauthenticated)
}

type operationsRequest struct {
	Cursors struct {
		Next *string `json:"next"`
		Prev *string `json:"prev"`
	} `json:"cursors"`
	PerPage int `json:"perPage"`
	Filter  struct {
		Categories []string `json:"categories"`
		Effect     string   `json:"effect"`
	} `json:"filter"`
}

type operationsResponse struct {
	Items []Operation `json:"items"`
}

func (c *cli) clientOperations(ctx context.Context) ([]Operation, error) {
	c.mu.Lock()
	token := c.sessionToken
	c.mu.Unlock()
	if token == "" {
		return nil, ErrUnauthenticated
	}

	var reqBody operationsRequest
	reqBody.PerPage = operationsPerPage
	reqBody.Filter.Categories = []string{}
	reqBody.Filter.Effect = effectCredit

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+clientOperationsPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		c.mu.Lock()
		c.sessionToken = ""
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: operations responded %d", ErrUnauthenticated, res.StatusCode)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bank operations responded %d", res.StatusCode)
	}

	var opsRes operationsResponse
	if err := json.NewDecoder(res.Body).Decode(&opsRes); err != nil {
		return nil, err
	}
	return opsRes.Items, nil
}

// HasPayment reports whether the recent incoming-credit history holds a
// successful transaction for exactly amount, newer than notBefore. The
// match is exact to the kopeck: that is what makes the fingerprint scheme
// identify a payer.
func (c *cli) HasPayment(ctx context.Context, amount decimal.Decimal, notBefore time.Time) (bool, error) {
	operations, err := c.clientOperations(ctx)
	if err != nil {
		return false, err
	}

	for _, op := range operations {
		if !op.Time.After(notBefore) {
			continue
		}
		if op.Status != statusSuccess {
			continue
		}
		if op.Amount().Equal(amount) {
			return true, nil
		}
	}
	return false, nil
}
