package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/bakery_backend/config"
	"bitbucket.org/mmdatafocus/bakery_backend/utils"
	"github.com/shopspring/decimal"
)

// BasePreparation is an intermediate good (dough, filling, glaze) produced in
// bulk and consumed by recipes by weight. TotalCost and CostPerWeightUnit are
// derived; only the ingredient lines and the output weight are inputs.
type BasePreparation struct {
	ID         int    `gorm:"primary_key" json:"id"`
	BusinessId string `gorm:"index;size:100;not null" json:"business_id"`
	Name       string `gorm:"index;size:100;not null" json:"name" binding:"required"`
	// OutputWeight is the batch yield in the business weight unit. Zero means
	// the yield is not recorded yet; cost-per-weight stays zero in that case.
	OutputWeight      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"output_weight"`
	TotalCost         decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"total_cost"`
	CostPerWeightUnit decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"cost_per_weight_unit"`
	CalculatedAt      *time.Time      `json:"calculated_at"`
	IsActive          *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	Ingredients []BasePreparationIngredient `gorm:"foreignKey:BasePreparationId" json:"ingredients"`
}

// BasePreparationIngredient is one costed ingredient line of a preparation.
// LineCost is quantity times the ingredient's current unit cost, refreshed on
// every resum.
type BasePreparationIngredient struct {
	ID                int             `gorm:"primary_key" json:"id"`
	BusinessId        string          `gorm:"index;size:100;not null" json:"business_id"`
	BasePreparationId int             `gorm:"uniqueIndex:prep_ingredient;not null" json:"base_preparation_id"`
	IngredientId      int             `gorm:"uniqueIndex:prep_ingredient;not null" json:"ingredient_id"`
	Quantity          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	LineCost          decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"line_cost"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	Ingredient *Ingredient `gorm:"foreignKey:IngredientId" json:"ingredient,omitempty"`
}

type NewBasePreparation struct {
	Name         string          `json:"name" binding:"required"`
	OutputWeight decimal.Decimal `json:"output_weight"`
}

func (input *NewBasePreparation) validate(ctx context.Context, businessId string, exceptId int) error {
	if err := utils.ValidateUnique[BasePreparation](ctx, businessId, "name", input.Name, exceptId); err != nil {
		return err
	}
	if input.OutputWeight.IsNegative() {
		return utils.InvalidQuantityf("output weight must not be negative")
	}
	return nil
}

func CreateBasePreparation(ctx context.Context, businessId string, input *NewBasePreparation) (*BasePreparation, error) {
	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	prep := BasePreparation{
		BusinessId:   businessId,
		Name:         input.Name,
		OutputWeight: input.OutputWeight.Round(4),
		IsActive:     utils.NewTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&prep).Error; err != nil {
		return nil, err
	}
	return &prep, nil
}

func GetBasePreparation(ctx context.Context, businessId string, id int) (*BasePreparation, error) {
	prep, err := utils.FetchModel[BasePreparation](ctx, businessId, id, "Ingredients", "Ingredients.Ingredient")
	if err != nil {
		return nil, utils.NotFoundf("base preparation %d", id)
	}
	return prep, nil
}

func ListBasePreparations(ctx context.Context, businessId string) ([]*BasePreparation, error) {
	return utils.FetchAllModels[BasePreparation](ctx, businessId, "Ingredients")
}
