package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/bakery_backend/config"
	"bitbucket.org/mmdatafocus/bakery_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Recipe costs one production batch of a product. A batch yields OutputQty
// items; TotalCost and CostPerItem are derived from the ingredient lines plus
// the base preparation usages.
type Recipe struct {
	ID         int    `gorm:"primary_key" json:"id"`
	BusinessId string `gorm:"index;size:100;not null" json:"business_id"`
	ProductId  int    `gorm:"uniqueIndex:recipe_product;not null" json:"product_id"`
	Name       string `gorm:"size:100;not null" json:"name" binding:"required"`
	// OutputQty is items produced per batch. Zero keeps cost-per-item at zero.
	OutputQty    decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"output_qty"`
	TotalCost    decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"total_cost"`
	CostPerItem  decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"cost_per_item"`
	CalculatedAt *time.Time      `json:"calculated_at"`
	IsActive     *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	Product     *Product           `gorm:"foreignKey:ProductId" json:"product,omitempty"`
	Ingredients []RecipeIngredient `gorm:"foreignKey:RecipeId" json:"ingredients"`
	BaseUsages  []RecipeBaseUsage  `gorm:"foreignKey:RecipeId" json:"base_usages"`
}

// RecipeIngredient is a direct ingredient line of a recipe.
type RecipeIngredient struct {
	ID           int             `gorm:"primary_key" json:"id"`
	BusinessId   string          `gorm:"index;size:100;not null" json:"business_id"`
	RecipeId     int             `gorm:"uniqueIndex:recipe_ingredient;not null" json:"recipe_id"`
	IngredientId int             `gorm:"uniqueIndex:recipe_ingredient;not null" json:"ingredient_id"`
	Quantity     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	LineCost     decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"line_cost"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	Ingredient *Ingredient `gorm:"foreignKey:IngredientId" json:"ingredient,omitempty"`
}

// RecipeBaseUsage consumes a weight of a base preparation in a recipe. Its
// line cost is weight times the preparation's cost per weight unit.
type RecipeBaseUsage struct {
	ID                int             `gorm:"primary_key" json:"id"`
	BusinessId        string          `gorm:"index;size:100;not null" json:"business_id"`
	RecipeId          int             `gorm:"uniqueIndex:recipe_base_usage;not null" json:"recipe_id"`
	BasePreparationId int             `gorm:"uniqueIndex:recipe_base_usage;not null" json:"base_preparation_id"`
	WeightUsed        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"weight_used"`
	LineCost          decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"line_cost"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	BasePreparation *BasePreparation `gorm:"foreignKey:BasePreparationId" json:"base_preparation,omitempty"`
}

type NewRecipe struct {
	ProductId int             `json:"product_id" binding:"required"`
	Name      string          `json:"name" binding:"required"`
	OutputQty decimal.Decimal `json:"output_qty"`
}

func (input *NewRecipe) validate(ctx context.Context, businessId string, exceptId int) error {
	if err := utils.ValidateResourceId[Product](ctx, businessId, input.ProductId); err != nil {
		return utils.NotFoundf("product %d", input.ProductId)
	}
	// one recipe per product
	if err := utils.ValidateUnique[Recipe](ctx, businessId, "product_id", input.ProductId, exceptId); err != nil {
		return err
	}
	if input.OutputQty.IsNegative() {
		return utils.InvalidQuantityf("output quantity must not be negative")
	}
	return nil
}

func CreateRecipe(ctx context.Context, businessId string, input *NewRecipe) (*Recipe, error) {
	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	recipe := Recipe{
		BusinessId: businessId,
		ProductId:  input.ProductId,
		Name:       input.Name,
		OutputQty:  input.OutputQty.Round(4),
		IsActive:   utils.NewTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&recipe).Error; err != nil {
		return nil, err
	}
	return &recipe, nil
}

func GetRecipe(ctx context.Context, businessId string, id int) (*Recipe, error) {
	recipe, err := utils.FetchModel[Recipe](ctx, businessId, id,
		"Product", "Ingredients", "Ingredients.Ingredient", "BaseUsages", "BaseUsages.BasePreparation")
	if err != nil {
		return nil, utils.NotFoundf("recipe %d", id)
	}
	return recipe, nil
}

func ListRecipes(ctx context.Context, businessId string) ([]*Recipe, error) {
	return utils.FetchAllModels[Recipe](ctx, businessId, "Product")
}

// RecipesUsingPreparation returns recipes holding a usage line of the given
// preparation. The cascade walks this set in-transaction after a preparation
// resum.
func RecipesUsingPreparation(tx *gorm.DB, businessId string, prepId int) ([]int, error) {
	var recipeIds []int
	err := tx.Model(&RecipeBaseUsage{}).
		Where("business_id = ? AND base_preparation_id = ?", businessId, prepId).
		Distinct().
		Pluck("recipe_id", &recipeIds).Error
	if err != nil {
		return nil, err
	}
	return recipeIds, nil
}
