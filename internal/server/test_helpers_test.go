package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/database"
	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/drinks"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	managerToken = "manager-token"
	baristaToken = "barista-token"
	noPermsToken = "no-permissions-token"
)

var errVerifierUnavailable = errors.New("jwks endpoint unavailable")

// stubVerifier maps raw tokens to canned claims or errors.
type stubVerifier struct {
	claims map[string]auth.Claims
	errs   map[string]error
}

func (s stubVerifier) Verify(_ context.Context, token string) (auth.Claims, error) {
	if err, ok := s.errs[token]; ok {
		return auth.Claims{}, err
	}
	if claims, ok := s.claims[token]; ok {
		return claims, nil
	}
	return auth.Claims{}, &auth.AuthError{
		Code:        auth.CodeInvalidHeader,
		Description: "Unable to parse authentication token.",
		StatusCode:  http.StatusUnauthorized,
	}
}

func newStubVerifier() stubVerifier {
	return stubVerifier{
		claims: map[string]auth.Claims{
			managerToken: auth.NewClaims("auth0|manager",
				PermissionGetDrinksDetail, PermissionPostDrinks, PermissionPatchDrinks, PermissionDeleteDrinks),
			baristaToken: auth.NewClaims("auth0|barista", PermissionGetDrinksDetail),
			noPermsToken: {Subject: "auth0|anonymous"},
		},
		errs: map[string]error{},
	}
}

// failingDrinkService returns the configured error from every operation.
type failingDrinkService struct {
	err error
}

func (s failingDrinkService) List(context.Context) ([]drinks.Drink, error) {
	return nil, s.err
}

func (s failingDrinkService) Find(context.Context, uint) (drinks.Drink, error) {
	return drinks.Drink{}, s.err
}

func (s failingDrinkService) Create(context.Context, drinks.NewDrink) (drinks.Drink, error) {
	return drinks.Drink{}, s.err
}

func (s failingDrinkService) Update(context.Context, uint, drinks.DrinkPatch) (drinks.Drink, error) {
	return drinks.Drink{}, s.err
}

func (s failingDrinkService) Delete(context.Context, uint) error {
	return s.err
}

func newDrinksService(t *testing.T) (*drinks.Service, *gorm.DB) {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "drinks.db"), database.Options{ResetOnStart: true}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close(db)
	})
	service, err := drinks.NewService(drinks.ServiceConfig{Database: db, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("failed to build drinks service: %v", err)
	}
	return service, db
}

func newTestRouter(t *testing.T, verifier auth.Verifier, service DrinkService, logger *zap.Logger) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if logger == nil {
		logger = zap.NewNop()
	}
	handler, err := NewHTTPHandler(Dependencies{
		Verifier:      verifier,
		DrinksService: service,
		Logger:        logger,
	})
	if err != nil {
		t.Fatalf("failed to construct http handler: %v", err)
	}
	return handler
}

func performRequest(router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	request := httptest.NewRequest(method, path, reader)
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func decodeErrorResponse(t *testing.T, recorder *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var payload errorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode error response %q: %v", recorder.Body.String(), err)
	}
	return payload
}
