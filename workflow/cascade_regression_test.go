package workflow_test

import (
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/bakery_backend/models"
	"bitbucket.org/mmdatafocus/bakery_backend/utils"
	"bitbucket.org/mmdatafocus/bakery_backend/workflow"
	"github.com/shopspring/decimal"
)

// Regression: a unit-cost change must resum the preparation, the recipes
// using it (directly and through the preparation), and the product's
// production cost, all in one commit.
func TestCostCascade_UnitCostChangePropagates(t *testing.T) {
	ctx, businessId := setupIntegration(t, "Cascade Bakery", "owner@cascade.test")

	flour, err := models.CreateIngredient(ctx, businessId, &models.NewIngredient{
		Name:        "Flour",
		Unit:        "kg",
		CostPerUnit: decimal.NewFromInt(200),
	})
	if err != nil {
		t.Fatalf("CreateIngredient: %v", err)
	}

	dough, err := models.CreateBasePreparation(ctx, businessId, &models.NewBasePreparation{
		Name:         "Dough",
		OutputWeight: decimal.NewFromInt(4),
	})
	if err != nil {
		t.Fatalf("CreateBasePreparation: %v", err)
	}
	if err := workflow.UpsertCompositionLine(ctx, businessId, models.CompositionParentPreparation,
		dough.ID, flour.ID, decimal.NewFromInt(2)); err != nil {
		t.Fatalf("UpsertCompositionLine(prep): %v", err)
	}

	bun, err := models.CreateProduct(ctx, businessId, &models.NewProduct{
		Name:         "Bun",
		SellingPrice: decimal.NewFromInt(30),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	recipe, err := models.CreateRecipe(ctx, businessId, &models.NewRecipe{
		ProductId: bun.ID,
		Name:      "Bun Batch",
		OutputQty: decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatalf("CreateRecipe: %v", err)
	}
	// 1 kg of dough plus 0.5 kg of flour directly.
	if err := workflow.SetBaseUsage(ctx, businessId, recipe.ID, dough.ID, decimal.NewFromInt(1)); err != nil {
		t.Fatalf("SetBaseUsage: %v", err)
	}
	if err := workflow.UpsertCompositionLine(ctx, businessId, models.CompositionParentRecipe,
		recipe.ID, flour.ID, decimal.RequireFromString("0.5")); err != nil {
		t.Fatalf("UpsertCompositionLine(recipe): %v", err)
	}

	// At 200/kg: dough total 400, rate 100/kg; recipe = 100 (usage) + 100
	// (direct) = 200, per item 20.
	gotPrep, err := models.GetBasePreparation(ctx, businessId, dough.ID)
	if err != nil {
		t.Fatalf("GetBasePreparation: %v", err)
	}
	if !gotPrep.TotalCost.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("prep total: expected 400, got %s", gotPrep.TotalCost)
	}
	if !gotPrep.CostPerWeightUnit.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("prep rate: expected 100, got %s", gotPrep.CostPerWeightUnit)
	}
	gotRecipe, err := models.GetRecipe(ctx, businessId, recipe.ID)
	if err != nil {
		t.Fatalf("GetRecipe: %v", err)
	}
	if !gotRecipe.TotalCost.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("recipe total: expected 200, got %s", gotRecipe.TotalCost)
	}
	if !gotRecipe.CostPerItem.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("cost per item: expected 20, got %s", gotRecipe.CostPerItem)
	}

	// Raise flour to 300/kg and expect everything downstream to move.
	if _, err := workflow.SetIngredientUnitCost(ctx, businessId, flour.ID, decimal.NewFromInt(300)); err != nil {
		t.Fatalf("SetIngredientUnitCost: %v", err)
	}

	gotPrep, err = models.GetBasePreparation(ctx, businessId, dough.ID)
	if err != nil {
		t.Fatalf("GetBasePreparation after cascade: %v", err)
	}
	if !gotPrep.TotalCost.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("prep total after cascade: expected 600, got %s", gotPrep.TotalCost)
	}
	if !gotPrep.CostPerWeightUnit.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("prep rate after cascade: expected 150, got %s", gotPrep.CostPerWeightUnit)
	}

	gotRecipe, err = models.GetRecipe(ctx, businessId, recipe.ID)
	if err != nil {
		t.Fatalf("GetRecipe after cascade: %v", err)
	}
	if !gotRecipe.TotalCost.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("recipe total after cascade: expected 300, got %s", gotRecipe.TotalCost)
	}
	if !gotRecipe.CostPerItem.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("cost per item after cascade: expected 30, got %s", gotRecipe.CostPerItem)
	}

	gotProduct, err := models.GetProduct(ctx, businessId, bun.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if !gotProduct.ProductionCost.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("production cost: expected 30, got %s", gotProduct.ProductionCost)
	}
}

// Regression: re-setting a yield to its current value must succeed
// idempotently, not surface as not-found. MySQL reports changed rows rather
// than matched rows, so existence cannot be inferred from the update result.
func TestCostCascade_YieldResetIsIdempotent(t *testing.T) {
	ctx, businessId := setupIntegration(t, "Idempotent Bakery", "owner@idem.test")

	dough, err := models.CreateBasePreparation(ctx, businessId, &models.NewBasePreparation{
		Name:         "Dough",
		OutputWeight: decimal.NewFromInt(4),
	})
	if err != nil {
		t.Fatalf("CreateBasePreparation: %v", err)
	}
	if _, err := workflow.SetBasePreparationWeight(ctx, businessId, dough.ID, decimal.NewFromInt(4)); err != nil {
		t.Fatalf("SetBasePreparationWeight(same value): %v", err)
	}
	if _, err := workflow.SetBasePreparationWeight(ctx, businessId, dough.ID+1000, decimal.NewFromInt(4)); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("missing preparation: expected not found, got %v", err)
	}

	scone, err := models.CreateProduct(ctx, businessId, &models.NewProduct{
		Name:         "Scone",
		SellingPrice: decimal.NewFromInt(35),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	recipe, err := models.CreateRecipe(ctx, businessId, &models.NewRecipe{
		ProductId: scone.ID,
		Name:      "Scone Batch",
		OutputQty: decimal.NewFromInt(12),
	})
	if err != nil {
		t.Fatalf("CreateRecipe: %v", err)
	}
	if _, err := workflow.SetRecipeOutputQty(ctx, businessId, recipe.ID, decimal.NewFromInt(12)); err != nil {
		t.Fatalf("SetRecipeOutputQty(same value): %v", err)
	}
	if _, err := workflow.SetRecipeOutputQty(ctx, businessId, recipe.ID+1000, decimal.NewFromInt(12)); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("missing recipe: expected not found, got %v", err)
	}
}

// Regression: removing a composition line and zeroing a base usage must
// resum totals instead of leaving stale line costs behind.
func TestCostCascade_LineRemovalResums(t *testing.T) {
	ctx, businessId := setupIntegration(t, "Removal Bakery", "owner@removal.test")

	butter, err := models.CreateIngredient(ctx, businessId, &models.NewIngredient{
		Name:        "Butter",
		Unit:        "kg",
		CostPerUnit: decimal.NewFromInt(1000),
	})
	if err != nil {
		t.Fatalf("CreateIngredient: %v", err)
	}
	sugar, err := models.CreateIngredient(ctx, businessId, &models.NewIngredient{
		Name:        "Sugar",
		Unit:        "kg",
		CostPerUnit: decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("CreateIngredient: %v", err)
	}

	croissant, err := models.CreateProduct(ctx, businessId, &models.NewProduct{
		Name:         "Croissant",
		SellingPrice: decimal.NewFromInt(50),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	recipe, err := models.CreateRecipe(ctx, businessId, &models.NewRecipe{
		ProductId: croissant.ID,
		Name:      "Croissant Batch",
		OutputQty: decimal.NewFromInt(20),
	})
	if err != nil {
		t.Fatalf("CreateRecipe: %v", err)
	}
	if err := workflow.UpsertCompositionLine(ctx, businessId, models.CompositionParentRecipe,
		recipe.ID, butter.ID, decimal.NewFromInt(1)); err != nil {
		t.Fatalf("UpsertCompositionLine(butter): %v", err)
	}
	if err := workflow.UpsertCompositionLine(ctx, businessId, models.CompositionParentRecipe,
		recipe.ID, sugar.ID, decimal.NewFromInt(2)); err != nil {
		t.Fatalf("UpsertCompositionLine(sugar): %v", err)
	}

	gotRecipe, err := models.GetRecipe(ctx, businessId, recipe.ID)
	if err != nil {
		t.Fatalf("GetRecipe: %v", err)
	}
	if !gotRecipe.TotalCost.Equal(decimal.NewFromInt(1200)) {
		t.Fatalf("recipe total: expected 1200, got %s", gotRecipe.TotalCost)
	}

	if err := workflow.RemoveCompositionLine(ctx, businessId, models.CompositionParentRecipe,
		recipe.ID, butter.ID); err != nil {
		t.Fatalf("RemoveCompositionLine: %v", err)
	}

	gotRecipe, err = models.GetRecipe(ctx, businessId, recipe.ID)
	if err != nil {
		t.Fatalf("GetRecipe after removal: %v", err)
	}
	if !gotRecipe.TotalCost.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("recipe total after removal: expected 200, got %s", gotRecipe.TotalCost)
	}
	if !gotRecipe.CostPerItem.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("cost per item after removal: expected 10, got %s", gotRecipe.CostPerItem)
	}
}
