package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/bakery_backend/config"
	"bitbucket.org/mmdatafocus/bakery_backend/models"
	"bitbucket.org/mmdatafocus/bakery_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Cost cascade.
//
// Ingredient unit costs are the only hand-entered costs. Everything else is
// derived: preparation lines -> preparation totals -> recipe usage lines ->
// recipe totals -> product production cost. Any edit to an upstream value
// resums every downstream aggregate inside the same transaction, so readers
// never observe a half-propagated cost.

const costingLockScope = "costing"

// resumPreparation recomputes one preparation's line costs and totals from
// current ingredient unit costs. Lines are rewritten only when their cost
// actually moved.
func resumPreparation(tx *gorm.DB, businessId string, prepId int) (*models.BasePreparation, error) {
	var prep models.BasePreparation
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND id = ?", businessId, prepId).
		First(&prep).Error
	if err != nil {
		return nil, utils.NotFoundf("base preparation %d", prepId)
	}

	var lines []models.BasePreparationIngredient
	if err := tx.Where("business_id = ? AND base_preparation_id = ?", businessId, prepId).
		Order("id ASC").
		Find(&lines).Error; err != nil {
		return nil, err
	}

	lineCosts := make([]decimal.Decimal, 0, len(lines))
	for i := range lines {
		var ingredient models.Ingredient
		if err := tx.Where("business_id = ? AND id = ?", businessId, lines[i].IngredientId).
			First(&ingredient).Error; err != nil {
			return nil, utils.NotFoundf("ingredient %d", lines[i].IngredientId)
		}
		newCost := LineCost(lines[i].Quantity, ingredient.CostPerUnit)
		if !newCost.Equal(lines[i].LineCost) {
			if err := tx.Model(&models.BasePreparationIngredient{}).
				Where("id = ?", lines[i].ID).
				Update("line_cost", newCost).Error; err != nil {
				return nil, err
			}
			lines[i].LineCost = newCost
		}
		lineCosts = append(lineCosts, newCost)
	}

	prep.TotalCost = SumLineCosts(lineCosts)
	prep.CostPerWeightUnit = CostPerWeightUnit(prep.TotalCost, prep.OutputWeight)
	now := time.Now().UTC()
	prep.CalculatedAt = &now

	if err := tx.Model(&models.BasePreparation{}).Where("id = ?", prep.ID).
		Updates(map[string]interface{}{
			"total_cost":           prep.TotalCost,
			"cost_per_weight_unit": prep.CostPerWeightUnit,
			"calculated_at":        now,
		}).Error; err != nil {
		return nil, err
	}
	return &prep, nil
}

// resumRecipe recomputes one recipe from current ingredient costs and
// preparation rates, and writes the resulting cost per item back to the
// product.
func resumRecipe(tx *gorm.DB, businessId string, recipeId int) (*models.Recipe, error) {
	var recipe models.Recipe
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND id = ?", businessId, recipeId).
		First(&recipe).Error
	if err != nil {
		return nil, utils.NotFoundf("recipe %d", recipeId)
	}

	var lineCosts []decimal.Decimal

	var ingredientLines []models.RecipeIngredient
	if err := tx.Where("business_id = ? AND recipe_id = ?", businessId, recipeId).
		Order("id ASC").
		Find(&ingredientLines).Error; err != nil {
		return nil, err
	}
	for i := range ingredientLines {
		var ingredient models.Ingredient
		if err := tx.Where("business_id = ? AND id = ?", businessId, ingredientLines[i].IngredientId).
			First(&ingredient).Error; err != nil {
			return nil, utils.NotFoundf("ingredient %d", ingredientLines[i].IngredientId)
		}
		newCost := LineCost(ingredientLines[i].Quantity, ingredient.CostPerUnit)
		if !newCost.Equal(ingredientLines[i].LineCost) {
			if err := tx.Model(&models.RecipeIngredient{}).
				Where("id = ?", ingredientLines[i].ID).
				Update("line_cost", newCost).Error; err != nil {
				return nil, err
			}
		}
		lineCosts = append(lineCosts, newCost)
	}

	var usages []models.RecipeBaseUsage
	if err := tx.Where("business_id = ? AND recipe_id = ?", businessId, recipeId).
		Order("id ASC").
		Find(&usages).Error; err != nil {
		return nil, err
	}
	for i := range usages {
		var prep models.BasePreparation
		if err := tx.Where("business_id = ? AND id = ?", businessId, usages[i].BasePreparationId).
			First(&prep).Error; err != nil {
			return nil, utils.NotFoundf("base preparation %d", usages[i].BasePreparationId)
		}
		newCost := LineCost(usages[i].WeightUsed, prep.CostPerWeightUnit)
		if !newCost.Equal(usages[i].LineCost) {
			if err := tx.Model(&models.RecipeBaseUsage{}).
				Where("id = ?", usages[i].ID).
				Update("line_cost", newCost).Error; err != nil {
				return nil, err
			}
		}
		lineCosts = append(lineCosts, newCost)
	}

	recipe.TotalCost = SumLineCosts(lineCosts)
	recipe.CostPerItem = CostPerItem(recipe.TotalCost, recipe.OutputQty)
	now := time.Now().UTC()
	recipe.CalculatedAt = &now

	if err := tx.Model(&models.Recipe{}).Where("id = ?", recipe.ID).
		Updates(map[string]interface{}{
			"total_cost":    recipe.TotalCost,
			"cost_per_item": recipe.CostPerItem,
			"calculated_at": now,
		}).Error; err != nil {
		return nil, err
	}

	// Production cost of the product tracks the recipe's cost per item.
	if err := tx.Model(&models.Product{}).
		Where("business_id = ? AND id = ?", businessId, recipe.ProductId).
		Update("production_cost", recipe.CostPerItem).Error; err != nil {
		return nil, err
	}

	return &recipe, nil
}

// cascadeFromIngredient resums every preparation and recipe whose cost
// depends on the given ingredient, directly or through a preparation.
func cascadeFromIngredient(tx *gorm.DB, businessId string, ingredientId int) error {
	var prepIds []int
	if err := tx.Model(&models.BasePreparationIngredient{}).
		Where("business_id = ? AND ingredient_id = ?", businessId, ingredientId).
		Distinct().
		Pluck("base_preparation_id", &prepIds).Error; err != nil {
		return err
	}

	recipeIdSet := make(map[int]bool)
	for _, prepId := range prepIds {
		if _, err := resumPreparation(tx, businessId, prepId); err != nil {
			return err
		}
		var dependentIds []int
		if err := tx.Model(&models.RecipeBaseUsage{}).
			Where("business_id = ? AND base_preparation_id = ?", businessId, prepId).
			Distinct().
			Pluck("recipe_id", &dependentIds).Error; err != nil {
			return err
		}
		for _, id := range dependentIds {
			recipeIdSet[id] = true
		}
	}

	var directIds []int
	if err := tx.Model(&models.RecipeIngredient{}).
		Where("business_id = ? AND ingredient_id = ?", businessId, ingredientId).
		Distinct().
		Pluck("recipe_id", &directIds).Error; err != nil {
		return err
	}
	for _, id := range directIds {
		recipeIdSet[id] = true
	}

	for recipeId := range recipeIdSet {
		if _, err := resumRecipe(tx, businessId, recipeId); err != nil {
			return err
		}
	}
	return nil
}

// cascadeFromPreparation resums the preparation and the recipes using it.
func cascadeFromPreparation(tx *gorm.DB, businessId string, prepId int) error {
	if _, err := resumPreparation(tx, businessId, prepId); err != nil {
		return err
	}
	recipeIds, err := models.RecipesUsingPreparation(tx, businessId, prepId)
	if err != nil {
		return err
	}
	for _, id := range recipeIds {
		if _, err := resumRecipe(tx, businessId, id); err != nil {
			return err
		}
	}
	return nil
}

// SetIngredientUnitCost updates the hand-entered unit cost and, unless the
// legacy manual-recalculation mode is enabled, resums every dependent
// preparation and recipe in the same transaction.
func SetIngredientUnitCost(ctx context.Context, businessId string, ingredientId int, newCost decimal.Decimal) (*models.Ingredient, error) {
	if newCost.IsNegative() {
		return nil, utils.InvalidQuantityf("cost per unit must not be negative")
	}

	var ingredient models.Ingredient
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquirePostingLock(tx, businessId, costingLockScope); err != nil {
			return err
		}
		defer ReleasePostingLock(tx, businessId, costingLockScope)

		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("business_id = ? AND id = ?", businessId, ingredientId).
			First(&ingredient).Error
		if err != nil {
			return utils.NotFoundf("ingredient %d", ingredientId)
		}

		ingredient.CostPerUnit = newCost.Round(4)
		if err := tx.Model(&models.Ingredient{}).Where("id = ?", ingredient.ID).
			Update("cost_per_unit", ingredient.CostPerUnit).Error; err != nil {
			return err
		}

		if config.CascadeOnUnitCostChange() {
			if err := cascadeFromIngredient(tx, businessId, ingredientId); err != nil {
				return err
			}
		}

		return models.PublishOperationsOutbox(ctx, tx, businessId, time.Now().UTC(),
			ingredient.ID, models.EventReferenceTypeIngredient, models.EventActionUpdate, &ingredient)
	})
	if err != nil {
		return nil, err
	}
	return &ingredient, nil
}

// RecordIngredientPurchase adds raw stock. When the purchase came at a new
// unit price, the cost is updated too and the cascade runs.
func RecordIngredientPurchase(ctx context.Context, businessId string, ingredientId int, quantity decimal.Decimal, unitCost *decimal.Decimal) (*models.Ingredient, error) {
	if !quantity.IsPositive() {
		return nil, utils.InvalidQuantityf("purchase quantity must be positive")
	}
	if unitCost != nil && unitCost.IsNegative() {
		return nil, utils.InvalidQuantityf("cost per unit must not be negative")
	}

	var ingredient models.Ingredient
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquirePostingLock(tx, businessId, costingLockScope); err != nil {
			return err
		}
		defer ReleasePostingLock(tx, businessId, costingLockScope)

		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("business_id = ? AND id = ?", businessId, ingredientId).
			First(&ingredient).Error
		if err != nil {
			return utils.NotFoundf("ingredient %d", ingredientId)
		}

		if err := tx.Exec("UPDATE ingredients SET on_hand_qty = on_hand_qty + ? WHERE id = ?",
			quantity, ingredient.ID).Error; err != nil {
			return err
		}
		ingredient.OnHandQty = ingredient.OnHandQty.Add(quantity)

		if unitCost != nil && !unitCost.Round(4).Equal(ingredient.CostPerUnit) {
			ingredient.CostPerUnit = unitCost.Round(4)
			if err := tx.Model(&models.Ingredient{}).Where("id = ?", ingredient.ID).
				Update("cost_per_unit", ingredient.CostPerUnit).Error; err != nil {
				return err
			}
			if config.CascadeOnUnitCostChange() {
				if err := cascadeFromIngredient(tx, businessId, ingredientId); err != nil {
					return err
				}
			}
		}

		return models.PublishOperationsOutbox(ctx, tx, businessId, time.Now().UTC(),
			ingredient.ID, models.EventReferenceTypeIngredient, models.EventActionUpdate, &ingredient)
	})
	if err != nil {
		return nil, err
	}
	return &ingredient, nil
}

// RecordIngredientConsumption removes raw stock, rejecting draws beyond what
// is on hand.
func RecordIngredientConsumption(ctx context.Context, businessId string, ingredientId int, quantity decimal.Decimal) (*models.Ingredient, error) {
	if !quantity.IsPositive() {
		return nil, utils.InvalidQuantityf("consumption quantity must be positive")
	}

	var ingredient models.Ingredient
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("business_id = ? AND id = ?", businessId, ingredientId).
			First(&ingredient).Error
		if err != nil {
			return utils.NotFoundf("ingredient %d", ingredientId)
		}

		if ingredient.OnHandQty.LessThan(quantity) {
			return utils.InvalidQuantityf("consumption %s exceeds on-hand %s for ingredient %d",
				quantity.String(), ingredient.OnHandQty.String(), ingredientId)
		}

		if err := tx.Exec("UPDATE ingredients SET on_hand_qty = on_hand_qty - ? WHERE id = ?",
			quantity, ingredient.ID).Error; err != nil {
			return err
		}
		ingredient.OnHandQty = ingredient.OnHandQty.Sub(quantity)

		return models.PublishOperationsOutbox(ctx, tx, businessId, time.Now().UTC(),
			ingredient.ID, models.EventReferenceTypeIngredient, models.EventActionUpdate, &ingredient)
	})
	if err != nil {
		return nil, err
	}
	return &ingredient, nil
}

// UpsertCompositionLine sets the quantity of an ingredient line on a recipe
// or a preparation and resums the affected aggregates.
func UpsertCompositionLine(ctx context.Context, businessId string, parentKind models.CompositionParentKind, parentId int, ingredientId int, quantity decimal.Decimal) error {
	if !parentKind.IsValid() {
		return utils.InvalidStatef("unknown composition parent kind %s", parentKind)
	}
	if !quantity.IsPositive() {
		return utils.InvalidQuantityf("line quantity must be positive")
	}
	if err := utils.ValidateResourceId[models.Ingredient](ctx, businessId, ingredientId); err != nil {
		return utils.NotFoundf("ingredient %d", ingredientId)
	}

	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquirePostingLock(tx, businessId, costingLockScope); err != nil {
			return err
		}
		defer ReleasePostingLock(tx, businessId, costingLockScope)

		switch parentKind {
		case models.CompositionParentPreparation:
			line := models.BasePreparationIngredient{
				BusinessId:        businessId,
				BasePreparationId: parentId,
				IngredientId:      ingredientId,
			}
			result := tx.Where("business_id = ? AND base_preparation_id = ? AND ingredient_id = ?",
				businessId, parentId, ingredientId).
				FirstOrCreate(&line)
			if result.Error != nil {
				return result.Error
			}
			if err := tx.Model(&models.BasePreparationIngredient{}).Where("id = ?", line.ID).
				Update("quantity", quantity.Round(4)).Error; err != nil {
				return err
			}
			return cascadeFromPreparation(tx, businessId, parentId)

		default: // recipe
			line := models.RecipeIngredient{
				BusinessId:   businessId,
				RecipeId:     parentId,
				IngredientId: ingredientId,
			}
			result := tx.Where("business_id = ? AND recipe_id = ? AND ingredient_id = ?",
				businessId, parentId, ingredientId).
				FirstOrCreate(&line)
			if result.Error != nil {
				return result.Error
			}
			if err := tx.Model(&models.RecipeIngredient{}).Where("id = ?", line.ID).
				Update("quantity", quantity.Round(4)).Error; err != nil {
				return err
			}
			_, err := resumRecipe(tx, businessId, parentId)
			return err
		}
	})
}

// RemoveCompositionLine deletes an ingredient line and resums the parent.
func RemoveCompositionLine(ctx context.Context, businessId string, parentKind models.CompositionParentKind, parentId int, ingredientId int) error {
	if !parentKind.IsValid() {
		return utils.InvalidStatef("unknown composition parent kind %s", parentKind)
	}

	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquirePostingLock(tx, businessId, costingLockScope); err != nil {
			return err
		}
		defer ReleasePostingLock(tx, businessId, costingLockScope)

		switch parentKind {
		case models.CompositionParentPreparation:
			result := tx.Where("business_id = ? AND base_preparation_id = ? AND ingredient_id = ?",
				businessId, parentId, ingredientId).
				Delete(&models.BasePreparationIngredient{})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return utils.NotFoundf("composition line for ingredient %d on preparation %d", ingredientId, parentId)
			}
			return cascadeFromPreparation(tx, businessId, parentId)

		default:
			result := tx.Where("business_id = ? AND recipe_id = ? AND ingredient_id = ?",
				businessId, parentId, ingredientId).
				Delete(&models.RecipeIngredient{})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return utils.NotFoundf("composition line for ingredient %d on recipe %d", ingredientId, parentId)
			}
			_, err := resumRecipe(tx, businessId, parentId)
			return err
		}
	})
}

// SetBaseUsage sets the weight of a preparation used by a recipe. A zero
// weight removes the usage line.
func SetBaseUsage(ctx context.Context, businessId string, recipeId int, prepId int, weight decimal.Decimal) error {
	if weight.IsNegative() {
		return utils.InvalidQuantityf("usage weight must not be negative")
	}
	if err := utils.ValidateResourceId[models.BasePreparation](ctx, businessId, prepId); err != nil {
		return utils.NotFoundf("base preparation %d", prepId)
	}

	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquirePostingLock(tx, businessId, costingLockScope); err != nil {
			return err
		}
		defer ReleasePostingLock(tx, businessId, costingLockScope)

		if weight.IsZero() {
			result := tx.Where("business_id = ? AND recipe_id = ? AND base_preparation_id = ?",
				businessId, recipeId, prepId).
				Delete(&models.RecipeBaseUsage{})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return utils.NotFoundf("base usage of preparation %d on recipe %d", prepId, recipeId)
			}
		} else {
			usage := models.RecipeBaseUsage{
				BusinessId:        businessId,
				RecipeId:          recipeId,
				BasePreparationId: prepId,
			}
			result := tx.Where("business_id = ? AND recipe_id = ? AND base_preparation_id = ?",
				businessId, recipeId, prepId).
				FirstOrCreate(&usage)
			if result.Error != nil {
				return result.Error
			}
			if err := tx.Model(&models.RecipeBaseUsage{}).Where("id = ?", usage.ID).
				Update("weight_used", weight.Round(4)).Error; err != nil {
				return err
			}
		}

		_, err := resumRecipe(tx, businessId, recipeId)
		return err
	})
}

// SetBasePreparationWeight updates the batch yield and resums the
// preparation plus every recipe consuming it.
func SetBasePreparationWeight(ctx context.Context, businessId string, prepId int, outputWeight decimal.Decimal) (*models.BasePreparation, error) {
	if outputWeight.IsNegative() {
		return nil, utils.InvalidQuantityf("output weight must not be negative")
	}

	var prep *models.BasePreparation
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquirePostingLock(tx, businessId, costingLockScope); err != nil {
			return err
		}
		defer ReleasePostingLock(tx, businessId, costingLockScope)

		// Existence check first: RowsAffected reports changed rows, so an
		// idempotent re-set of the current weight would look like a miss.
		var current models.BasePreparation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("business_id = ? AND id = ?", businessId, prepId).
			First(&current).Error; err != nil {
			return utils.NotFoundf("base preparation %d", prepId)
		}

		if err := tx.Model(&models.BasePreparation{}).Where("id = ?", current.ID).
			Update("output_weight", outputWeight.Round(4)).Error; err != nil {
			return err
		}

		if err := cascadeFromPreparation(tx, businessId, prepId); err != nil {
			return err
		}

		var err error
		prep, err = resumLoadPreparation(tx, businessId, prepId)
		if err != nil {
			return err
		}
		return models.PublishOperationsOutbox(ctx, tx, businessId, time.Now().UTC(),
			prepId, models.EventReferenceTypeBasePreparation, models.EventActionUpdate, prep)
	})
	if err != nil {
		return nil, err
	}
	return prep, nil
}

// SetRecipeOutputQty updates the batch yield of a recipe and resums it.
func SetRecipeOutputQty(ctx context.Context, businessId string, recipeId int, outputQty decimal.Decimal) (*models.Recipe, error) {
	if outputQty.IsNegative() {
		return nil, utils.InvalidQuantityf("output quantity must not be negative")
	}

	var recipe *models.Recipe
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquirePostingLock(tx, businessId, costingLockScope); err != nil {
			return err
		}
		defer ReleasePostingLock(tx, businessId, costingLockScope)

		// Existence check first: RowsAffected reports changed rows, so an
		// idempotent re-set of the current yield would look like a miss.
		var current models.Recipe
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("business_id = ? AND id = ?", businessId, recipeId).
			First(&current).Error; err != nil {
			return utils.NotFoundf("recipe %d", recipeId)
		}

		if err := tx.Model(&models.Recipe{}).Where("id = ?", current.ID).
			Update("output_qty", outputQty.Round(4)).Error; err != nil {
			return err
		}

		var err error
		recipe, err = resumRecipe(tx, businessId, recipeId)
		if err != nil {
			return err
		}
		return models.PublishOperationsOutbox(ctx, tx, businessId, time.Now().UTC(),
			recipeId, models.EventReferenceTypeRecipe, models.EventActionUpdate, recipe)
	})
	if err != nil {
		return nil, err
	}
	return recipe, nil
}

// RecalculateBasePreparation forces a resum of one preparation and its
// dependent recipes. This is the manual entrypoint; with the cascade flag on
// it only matters after bulk data fixes.
func RecalculateBasePreparation(ctx context.Context, businessId string, prepId int) (*models.BasePreparation, error) {
	var prep *models.BasePreparation
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquirePostingLock(tx, businessId, costingLockScope); err != nil {
			return err
		}
		defer ReleasePostingLock(tx, businessId, costingLockScope)

		if err := cascadeFromPreparation(tx, businessId, prepId); err != nil {
			return err
		}
		var err error
		prep, err = resumLoadPreparation(tx, businessId, prepId)
		return err
	})
	if err != nil {
		return nil, err
	}
	return prep, nil
}

// RecalculateRecipe forces a resum of one recipe.
func RecalculateRecipe(ctx context.Context, businessId string, recipeId int) (*models.Recipe, error) {
	var recipe *models.Recipe
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquirePostingLock(tx, businessId, costingLockScope); err != nil {
			return err
		}
		defer ReleasePostingLock(tx, businessId, costingLockScope)

		var err error
		recipe, err = resumRecipe(tx, businessId, recipeId)
		return err
	})
	if err != nil {
		return nil, err
	}
	return recipe, nil
}

// RecalculateAllCosts resums every preparation, then every recipe, of a
// business. Used by the maintenance CLI after imports or data fixes.
func RecalculateAllCosts(ctx context.Context, businessId string) (prepCount int, recipeCount int, err error) {
	// Full resums can take a while; hold the cross-instance lock so two
	// recalculation runs never interleave for the same business.
	release, err := utils.AggregateLock(ctx, businessId, "CostRecalculation", "workflow", "RecalculateAllCosts")
	if err != nil {
		return 0, 0, err
	}
	defer release()

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquirePostingLock(tx, businessId, costingLockScope); err != nil {
			return err
		}
		defer ReleasePostingLock(tx, businessId, costingLockScope)

		var prepIds []int
		if err := tx.Model(&models.BasePreparation{}).
			Where("business_id = ?", businessId).
			Order("id ASC").
			Pluck("id", &prepIds).Error; err != nil {
			return err
		}
		for _, id := range prepIds {
			if _, err := resumPreparation(tx, businessId, id); err != nil {
				return err
			}
			prepCount++
		}

		var recipeIds []int
		if err := tx.Model(&models.Recipe{}).
			Where("business_id = ?", businessId).
			Order("id ASC").
			Pluck("id", &recipeIds).Error; err != nil {
			return err
		}
		for _, id := range recipeIds {
			if _, err := resumRecipe(tx, businessId, id); err != nil {
				return err
			}
			recipeCount++
		}
		return nil
	})
	return prepCount, recipeCount, err
}

func resumLoadPreparation(tx *gorm.DB, businessId string, prepId int) (*models.BasePreparation, error) {
	var prep models.BasePreparation
	err := tx.Where("business_id = ? AND id = ?", businessId, prepId).First(&prep).Error
	if err != nil {
		return nil, utils.NotFoundf("base preparation %d", prepId)
	}
	return &prep, nil
}
