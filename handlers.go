package main

import (
	"errors"
	"net/http"
	"time"

	"bitbucket.org/mmdatafocus/bakery_backend/config"
	"bitbucket.org/mmdatafocus/bakery_backend/models"
	"bitbucket.org/mmdatafocus/bakery_backend/utils"
	"bitbucket.org/mmdatafocus/bakery_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// respondError maps domain error kinds to HTTP statuses. Unknown errors are
// logged and hidden behind a 500.
func respondError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrors):
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrorConstraintConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrorInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrorInvalidQuantity):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		logger := config.GetLogger()
		config.LogError(logger, "handlers.go", "respondError", c.FullPath(), nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func businessIdOrAbort(c *gin.Context) (string, bool) {
	businessId, ok := utils.GetBusinessIdFromContext(c.Request.Context())
	if !ok || businessId == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing business id"})
		return "", false
	}
	return businessId, true
}

func idParam(c *gin.Context, name string) (int, bool) {
	var id int
	if err := bindIntParam(c.Param(name), &id); err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

/* businesses */

func createBusinessHandler(c *gin.Context) {
	var input models.NewBusiness
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	business, err := models.CreateBusiness(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, business)
}

/* products */

func createProductHandler(c *gin.Context) {
	businessId, ok := businessIdOrAbort(c)
	if !ok {
		return
	}
	var input models.NewProduct
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	product, err := models.CreateProduct(c.Request.Context(), businessId, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func listProductsHandler(c *gin.Context) {
	businessId, ok := businessIdOrAbort(c)
	if !ok {
		return
	}
	products, err := models.ListProducts(c.Request.Context(), businessId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func getProductHandler(c *gin.Context) {
	businessId, ok := businessIdOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	product, err := models.GetProduct(c.Request.Context(), businessId, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func updateProductHandler(c *gin.Context) {
	businessId, ok := businessIdOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input models.NewProduct
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	product, err := models.UpdateProduct(c.Request.Context(), businessId, id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

/* ingredients */

func createIngredientHandler(c *gin.Context) {
	businessId, ok := businessIdOrAbort(c)
	if !ok {
		return
	}
	var input models.NewIngredient
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	ingredient, err := models.CreateIngredient(c.Request.Context(), businessId, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ingredient)
}

func listIngredientsHandler(c *gin.Context) {
	businessId, ok := businessIdOrAbort(c)
	if !ok {
		return
	}
	ingredients, err := models.ListIngredients(c.Request.Context(), businessId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ingredients)
}

type unitCostInput struct {
	CostPerUnit decimal.Decimal `json:"cost_per_unit" binding:"required"`
}

func setIngredientUnitCostHandler(c *gin.Context) {
	businessId, ok := businessIdOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input unitCostInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	ingredient, err := workflow.SetIngredientUnitCost(c.Request.Context(), businessId, id, input.CostPerUnit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ingredient)
}

type purchaseInput struct {
	Quantity    decimal.Decimal  `json:"quantity" binding:"required"`
	CostPerUnit *decimal.Decimal `json:"cost_per_unit"`
}

func recordIngredientPurchaseHandler(c *gin.Context) {
	businessId, ok := businessIdOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input purchaseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	ingredient, err := workflow.RecordIngredientPurchase(c.Request.Context(), businessId, id, input.Quantity, input.CostPerUnit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ingredient)
}

type consumptionInput struct {
	Quantity decimal.Decimal `json:"quantity" binding:"required"`
}

func recordIngredientConsumptionHandler(c *gin.Context) {
	businessId, ok := businessIdOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input consumptionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	ingredient, err := workflow.RecordIngredientConsumption(c.Request.Context(), businessId, id, input.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ingredient)
}

/* base preparations */

func createBasePreparationHandler(c *gin.Context) {
	businessId, ok := businessIdOrAbort(c)
	if !ok {
		return
	}
	var input models.NewBasePreparation
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	prep, err := models.CreateBasePreparation(c.Request.Context(), businessId, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, prep)
}

func listBasePreparationsHandler(c *gin.Context) {
	businessId, ok := businessIdOrAbort(c)
	if !ok {
		return
	}
	preps, err := models.ListBasePreparations(c.Request.Context(), businessId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, preps)
}

func getBasePreparationHandler(c *gin.Context) {
	businessId, ok := businessIdOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	prep, err := models.GetBasePreparation(c.Request.Context(), businessId, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, prep)
}

type outputWeightInput struct {
	OutputWeight decimal.Decimal `json:"output_weight" binding:"required"`
}

func setBasePreparationWeightHandler(c *gin.Context) {
	businessId, ok := businessIdOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input outputWeightInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	prep, err := workflow.SetBasePreparationWeight(c.Request.Context(), businessId, id, input.OutputWeight)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, prep)
}

func recalculateBasePreparationHandler(c *gin.Context) {
	businessId, ok := businessIdOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	prep, err := workflow.RecalculateBasePreparation(c.Request.Context(), businessId, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, prep)
}

/* recipes */

func createRecipeHandler(c *gin.Context) {
	businessId, ok := businessIdOrAbort(c)
	if !ok {
		return
	}
	var input models.NewRecipe
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	recipe, err := models.CreateRecipe(c.Request.Context(), businessId, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, recipe)
}

func listRecipesHandler(c *gin.Context) {
	businessId, ok := businessIdOrAbort(c)
	if !ok {
		return
	}
	recipes, err := models.ListRecipes(c.Request.Context(), businessId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recipes)
}

func getRecipeHandler(c *gin.Context) {
	businessId, ok := businessIdOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	recipe, err := models.GetRecipe(c.Request.Context(), businessId, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

type outputQtyInput struct {
	OutputQty decimal.Decimal `json:"output_qty" binding:"required"`
}

func setRecipeOutputQtyHandler(c *gin.Context) {
	businessId, ok := businessIdOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input outputQtyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	recipe, err := workflow.SetRecipeOutputQty(c.Request.Context(), businessId, id, input.OutputQty)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

func recalculateRecipeHandler(c *gin.Context) {
	businessId, ok := businessIdOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	recipe, err := workflow.RecalculateRecipe(c.Request.Context(), businessId, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

/* composition lines */

type compositionLineInput struct {
	IngredientId int             `json:"ingredient_id" binding:"required"`
	Quantity     decimal.Decimal `json:"quantity" binding:"required"`
}

func upsertCompositionLineHandler(parentKind models.CompositionParentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := businessIdOrAbort(c)
		if !ok {
			return
		}
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var input compositionLineInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, err)
			return
		}
		err := workflow.UpsertCompositionLine(c.Request.Context(), businessId, parentKind, id, input.IngredientId, input.Quantity)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func removeCompositionLineHandler(parentKind models.CompositionParentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := businessIdOrAbort(c)
		if !ok {
			return
		}
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		ingredientId, ok := idParam(c, "ingredientId")
		if !ok {
			return
		}
		err := workflow.RemoveCompositionLine(c.Request.Context(), businessId, parentKind, id, ingredientId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type baseUsageInput struct {
	BasePreparationId int             `json:"base_preparation_id" binding:"required"`
	Weight            decimal.Decimal `json:"weight"`
}

func setBaseUsageHandler(c *gin.Context) {
	businessId, ok := businessIdOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input baseUsageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	err := workflow.SetBaseUsage(c.Request.Context(), businessId, id, input.BasePreparationId, input.Weight)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

/* locations and movements */

func createLocationHandler(c *gin.Context) {
	businessId, ok := businessIdOrAbort(c)
	if !ok {
		return
	}
	var input models.NewLocation
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	location, err := models.CreateLocation(c.Request.Context(), businessId, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, location)
}

func listLocationsHandler(c *gin.Context) {
	businessId, ok := businessIdOrAbort(c)
	if !ok {
		return
	}
	locations, err := models.ListLocations(c.Request.Context(), businessId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, locations)
}

type inflowInput struct {
	LocationId int                   `json:"location_id" binding:"required"`
	ProductId  int                   `json:"product_id" binding:"required"`
	Category   models.InflowCategory `json:"category" binding:"required"`
	Quantity   decimal.Decimal       `json:"quantity" binding:"required"`
	OccurredAt *time.Time            `json:"occurred_at"`
}

func recordInflowHandler(c *gin.Context) {
	businessId, ok := businessIdOrAbort(c)
	if !ok {
		return
	}
	var input inflowInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	occurredAt := utils.DereferencePtr(input.OccurredAt, time.Now().UTC())
	err := workflow.RecordInflow(c.Request.Context(), businessId, input.LocationId, input.ProductId, occurredAt, input.Category, input.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type outflowInput struct {
	LocationId int                    `json:"location_id" binding:"required"`
	ProductId  int                    `json:"product_id" binding:"required"`
	Category   models.OutflowCategory `json:"category" binding:"required"`
	Quantity   decimal.Decimal        `json:"quantity" binding:"required"`
	OccurredAt *time.Time             `json:"occurred_at"`
}

func recordOutflowHandler(c *gin.Context) {
	businessId, ok := businessIdOrAbort(c)
	if !ok {
		return
	}
	var input outflowInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	occurredAt := utils.DereferencePtr(input.OccurredAt, time.Now().UTC())
	err := workflow.RecordOutflow(c.Request.Context(), businessId, input.LocationId, input.ProductId, occurredAt, input.Category, input.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type transferInput struct {
	FromLocationId int             `json:"from_location_id" binding:"required"`
	ToLocationId   int             `json:"to_location_id" binding:"required"`
	ProductId      int             `json:"product_id" binding:"required"`
	Quantity       decimal.Decimal `json:"quantity" binding:"required"`
	OccurredAt     *time.Time      `json:"occurred_at"`
}

func recordTransferHandler(c *gin.Context) {
	businessId, ok := businessIdOrAbort(c)
	if !ok {
		return
	}
	var input transferInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	occurredAt := utils.DereferencePtr(input.OccurredAt, time.Now().UTC())
	err := workflow.RecordTransfer(c.Request.Context(), businessId, input.FromLocationId, input.ToLocationId, input.ProductId, occurredAt, input.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

/* settlements */

type initiateSettlementInput struct {
	LocationId int        `json:"location_id" binding:"required"`
	OccurredAt *time.Time `json:"occurred_at"`
}

func initiateSettlementHandler(c *gin.Context) {
	businessId, ok := businessIdOrAbort(c)
	if !ok {
		return
	}
	var input initiateSettlementInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	occurredAt := utils.DereferencePtr(input.OccurredAt, time.Now().UTC())
	record, err := workflow.InitiateSettlement(c.Request.Context(), businessId, input.LocationId, occurredAt)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func listSettlementsHandler(c *gin.Context) {
	businessId, ok := businessIdOrAbort(c)
	if !ok {
		return
	}
	var locationId int
	if v := c.Query("location_id"); v != "" {
		if err := bindIntParam(v, &locationId); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid location_id"})
			return
		}
	}
	status := models.SettlementStatus(c.Query("status"))
	records, err := models.ListSettlements(c.Request.Context(), businessId, locationId, status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func getSettlementDetailHandler(c *gin.Context) {
	businessId, ok := businessIdOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	detail, err := workflow.GetSettlementDetail(c.Request.Context(), businessId, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

type settlementCountInput struct {
	CountedQty map[int]decimal.Decimal `json:"counted_qty" binding:"required"`
}

func recordSettlementCountHandler(c *gin.Context) {
	businessId, ok := businessIdOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input settlementCountInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	record, err := workflow.RecordSettlementCount(c.Request.Context(), businessId, id, input.CountedQty)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

type settleInput struct {
	ActualCash decimal.Decimal `json:"actual_cash"`
	Notes      string          `json:"notes"`
}

func settleSettlementHandler(c *gin.Context) {
	businessId, ok := businessIdOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input settleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	record, err := workflow.SettleSettlement(c.Request.Context(), businessId, id, input.ActualCash, input.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

type disputeInput struct {
	Reason string `json:"reason" binding:"required"`
}

func disputeSettlementHandler(c *gin.Context) {
	businessId, ok := businessIdOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input disputeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, err)
		return
	}
	record, err := workflow.DisputeSettlement(c.Request.Context(), businessId, id, input.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}
