package server

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/drinks"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

var errMissingBody = errors.New("request body is required")

type drinkRequestPayload struct {
	Title  *string        `json:"title"`
	Recipe *drinks.Recipe `json:"recipe"`
}

type shortDrinksResponse struct {
	Success bool                `json:"success"`
	Drinks  []drinks.ShortDrink `json:"drinks"`
}

type longDrinksResponse struct {
	Success bool               `json:"success"`
	Drinks  []drinks.LongDrink `json:"drinks"`
}

type deleteDrinkResponse struct {
	Success bool `json:"success"`
	Delete  uint `json:"delete"`
}

func (h *httpHandler) handleListDrinks(c *gin.Context) {
	menu, err := h.drinks.List(c.Request.Context())
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	response := shortDrinksResponse{Success: true, Drinks: make([]drinks.ShortDrink, 0, len(menu))}
	for _, drink := range menu {
		response.Drinks = append(response.Drinks, drink.Short())
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleListDrinksDetail(c *gin.Context) {
	menu, err := h.drinks.List(c.Request.Context())
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	response := longDrinksResponse{Success: true, Drinks: make([]drinks.LongDrink, 0, len(menu))}
	for _, drink := range menu {
		response.Drinks = append(response.Drinks, drink.Long())
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleCreateDrink(c *gin.Context) {
	var request drinkRequestPayload
	if err := bindDrinkPayload(c, &request); err != nil {
		h.logger.Debug("create drink body rejected", zap.Error(err))
		abortWithError(c, statusNotFound, "invalid_body")
		return
	}

	input := drinks.NewDrink{}
	if request.Title != nil {
		input.Title = *request.Title
	}
	if request.Recipe != nil {
		input.Recipe = *request.Recipe
	}

	created, err := h.drinks.Create(c.Request.Context(), input)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	h.logger.Info("drink created", zap.Uint("drink_id", created.ID), subjectField(c))
	h.publishChange(RealtimeActionCreated, created.ID)
	c.JSON(http.StatusOK, longDrinksResponse{Success: true, Drinks: []drinks.LongDrink{created.Long()}})
}

func (h *httpHandler) handleUpdateDrink(c *gin.Context) {
	drinkID, ok := parseDrinkID(c)
	if !ok {
		abortWithError(c, statusBadRequest, "invalid_drink_id")
		return
	}

	var request drinkRequestPayload
	if err := bindDrinkPayload(c, &request); err != nil {
		h.logger.Debug("update drink body rejected", zap.Error(err))
		abortWithError(c, statusBadRequest, "invalid_body")
		return
	}

	updated, err := h.drinks.Update(c.Request.Context(), drinkID, drinks.DrinkPatch{
		Title:  request.Title,
		Recipe: request.Recipe,
	})
	if err != nil {
		abortWithServiceErrorUsing(c, err, updateStatusForKind)
		return
	}

	h.logger.Info("drink updated", zap.Uint("drink_id", updated.ID), subjectField(c))
	h.publishChange(RealtimeActionUpdated, updated.ID)
	c.JSON(http.StatusOK, longDrinksResponse{Success: true, Drinks: []drinks.LongDrink{updated.Long()}})
}

func (h *httpHandler) handleDeleteDrink(c *gin.Context) {
	drinkID, ok := parseDrinkID(c)
	if !ok {
		abortWithError(c, statusBadRequest, "invalid_drink_id")
		return
	}

	if err := h.drinks.Delete(c.Request.Context(), drinkID); err != nil {
		abortWithServiceError(c, err)
		return
	}

	h.logger.Info("drink deleted", zap.Uint("drink_id", drinkID), subjectField(c))
	h.publishChange(RealtimeActionDeleted, drinkID)
	c.JSON(http.StatusOK, deleteDrinkResponse{Success: true, Delete: drinkID})
}

func parseDrinkID(c *gin.Context) (uint, bool) {
	value, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(value), true
}

// bindDrinkPayload rejects empty and null bodies before decoding the JSON object.
func bindDrinkPayload(c *gin.Context, request *drinkRequestPayload) error {
	raw, err := c.GetRawData()
	if err != nil {
		return err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return errMissingBody
	}
	return binding.JSON.BindBody(trimmed, request)
}
