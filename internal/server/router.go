package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/drinks"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Permissions required by the gated drink endpoints.
const (
	PermissionGetDrinksDetail = "get:drinks-detail"
	PermissionPostDrinks      = "post:drinks"
	PermissionPatchDrinks     = "patch:drinks"
	PermissionDeleteDrinks    = "delete:drinks"
)

const (
	claimsContextKey         = "coffeeshop_claims"
	requestIDContextKey      = "coffeeshop_request_id"
	requestIDHeader          = "X-Request-ID"
	defaultRealtimeHeartbeat = 25 * time.Second
)

var (
	errMissingVerifier      = errors.New("token verifier dependency required")
	errMissingDrinksService = errors.New("drinks service dependency required")
)

// DrinkService is the persistence contract the route layer depends on.
type DrinkService interface {
	List(ctx context.Context) ([]drinks.Drink, error)
	Find(ctx context.Context, id uint) (drinks.Drink, error)
	Create(ctx context.Context, input drinks.NewDrink) (drinks.Drink, error)
	Update(ctx context.Context, id uint, patch drinks.DrinkPatch) (drinks.Drink, error)
	Delete(ctx context.Context, id uint) error
}

// Dependencies is the explicit set of collaborators the HTTP handler is built from.
type Dependencies struct {
	Verifier          auth.Verifier
	DrinksService     DrinkService
	Logger            *zap.Logger
	Realtime          *RealtimeDispatcher
	RealtimeHeartbeat time.Duration
	AllowedOrigins    []string
}

// NewHTTPHandler wires middleware and routes into a gin engine.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Verifier == nil {
		return nil, errMissingVerifier
	}
	if deps.DrinksService == nil {
		return nil, errMissingDrinksService
	}
	authorizer, err := auth.NewAuthorizer(deps.Verifier)
	if err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	realtime := deps.Realtime
	if realtime == nil {
		realtime = NewRealtimeDispatcher()
	}
	heartbeat := deps.RealtimeHeartbeat
	if heartbeat <= 0 {
		heartbeat = defaultRealtimeHeartbeat
	}

	handler := &httpHandler{
		authorizer:   authorizer,
		drinks:       deps.DrinksService,
		logger:       logger,
		realtime:     realtime,
		heartbeat:    heartbeat,
		clock:        time.Now,
		requestIDGen: newRequestID,
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(handler.assignRequestID)
	router.Use(handler.logRequest)
	router.Use(gin.CustomRecovery(handler.recoverPanic))
	router.Use(corsMiddleware(deps.AllowedOrigins))
	router.NoRoute(handleNoRoute)
	router.NoMethod(handleNoMethod)

	router.GET("/drinks", handler.handleListDrinks)
	router.GET("/drinks/stream", handler.handleDrinkStream)
	router.GET("/drinks-detail", handler.requirePermission(PermissionGetDrinksDetail), handler.handleListDrinksDetail)
	router.POST("/drinks", handler.requirePermission(PermissionPostDrinks), handler.handleCreateDrink)
	router.PATCH("/drinks/:id", handler.requirePermission(PermissionPatchDrinks), handler.handleUpdateDrink)
	router.DELETE("/drinks/:id", handler.requirePermission(PermissionDeleteDrinks), handler.handleDeleteDrink)

	return router, nil
}

type httpHandler struct {
	authorizer   *auth.Authorizer
	drinks       DrinkService
	logger       *zap.Logger
	realtime     *RealtimeDispatcher
	heartbeat    time.Duration
	clock        func() time.Time
	requestIDGen func() string
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders:  []string{"Authorization", "Content-Type", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(allowedOrigins) == 0 || containsWildcard(allowedOrigins) {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = allowedOrigins
	}
	return cors.New(config)
}

func containsWildcard(origins []string) bool {
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}
