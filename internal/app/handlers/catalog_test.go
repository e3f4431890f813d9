package handlers

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axegao/axegaoshop/internal/app/entity"
	"github.com/axegao/axegaoshop/internal/app/payment"
	"github.com/axegao/axegaoshop/internal/app/registry"
	"github.com/axegao/axegaoshop/internal/app/storage"
)

// stubRepo embeds the interface so only the methods a test reaches need an
// implementation; anything else panics and fails the test loudly.
type stubRepo struct {
	storage.Repository
	parameters map[int64]entity.Parameter
	addedTo    int64
	added      []string
}

func (s *stubRepo) UserByID(userID int64) (entity.User, error) {
	return entity.User{ID: userID, IsAdmin: true}, nil
}

func (s *stubRepo) ParameterByID(parameterID int64) (entity.Parameter, error) {
	parameter, ok := s.parameters[parameterID]
	if !ok {
		return entity.Parameter{}, sql.ErrNoRows
	}
	return parameter, nil
}

func (s *stubRepo) AddParameterItems(parameterID int64, values []string) error {
	s.addedTo = parameterID
	s.added = values
	return nil
}

func adminRequest(t *testing.T, secretKey, method, target, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.AddCookie(&http.Cookie{Name: cookieName, Value: signUserID(1, secretKey)})
	return req
}

func TestAddParameterItemsRoute(t *testing.T) {
	const secretKey = "test-secret"

	repo := &stubRepo{parameters: map[int64]entity.Parameter{
		2: {ID: 2, ProductID: 1, Title: "standard", GiveType: entity.GiveTypeString},
	}}
	allocator := payment.NewAllocator(registry.NewMemory())
	bh := NewBaseHandler(repo, allocator, nil, secretKey, 10*time.Minute)

	// stock upload is nested under the owning product
	rec := httptest.NewRecorder()
	bh.ServeHTTP(rec, adminRequest(t, secretKey, http.MethodPost,
		"/api/products/1/parameters/2/items", `{"values":["AAA-BBB","CCC-DDD"]}`))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int64(2), repo.addedTo)
	assert.Equal(t, []string{"AAA-BBB", "CCC-DDD"}, repo.added)
}

func TestAddParameterItemsWrongProduct(t *testing.T) {
	const secretKey = "test-secret"

	repo := &stubRepo{parameters: map[int64]entity.Parameter{
		2: {ID: 2, ProductID: 1},
	}}
	allocator := payment.NewAllocator(registry.NewMemory())
	bh := NewBaseHandler(repo, allocator, nil, secretKey, 10*time.Minute)

	// parameter 2 belongs to product 1, not 9
	rec := httptest.NewRecorder()
	bh.ServeHTTP(rec, adminRequest(t, secretKey, http.MethodPost,
		"/api/products/9/parameters/2/items", `{"values":["AAA-BBB"]}`))

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, repo.added)
}
