package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/bakery_backend/config"
	"bitbucket.org/mmdatafocus/bakery_backend/utils"
	"github.com/shopspring/decimal"
)

// Ingredient is the only place a unit cost enters the system by hand; every
// preparation and recipe cost is derived from it. OnHandQty tracks raw stock
// at the production site.
type Ingredient struct {
	ID         int    `gorm:"primary_key" json:"id"`
	BusinessId string `gorm:"index;size:100;not null" json:"business_id"`
	Name       string `gorm:"index;size:100;not null" json:"name" binding:"required"`
	// Unit is the purchase/consumption unit (kg, g, pcs, l...).
	Unit        string          `gorm:"size:20;not null" json:"unit" binding:"required"`
	CostPerUnit decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"cost_per_unit"`
	OnHandQty   decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"on_hand_qty"`
	IsActive    *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewIngredient struct {
	Name        string          `json:"name" binding:"required"`
	Unit        string          `json:"unit" binding:"required"`
	CostPerUnit decimal.Decimal `json:"cost_per_unit"`
}

func (input *NewIngredient) validate(ctx context.Context, businessId string, exceptId int) error {
	if err := utils.ValidateUnique[Ingredient](ctx, businessId, "name", input.Name, exceptId); err != nil {
		return err
	}
	if input.CostPerUnit.IsNegative() {
		return utils.InvalidQuantityf("cost per unit must not be negative")
	}
	return nil
}

func CreateIngredient(ctx context.Context, businessId string, input *NewIngredient) (*Ingredient, error) {
	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	ingredient := Ingredient{
		BusinessId:  businessId,
		Name:        input.Name,
		Unit:        input.Unit,
		CostPerUnit: input.CostPerUnit.Round(4),
		IsActive:    utils.NewTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&ingredient).Error; err != nil {
		return nil, err
	}
	return &ingredient, nil
}

func GetIngredient(ctx context.Context, businessId string, id int) (*Ingredient, error) {
	ingredient, err := utils.FetchModel[Ingredient](ctx, businessId, id)
	if err != nil {
		return nil, utils.NotFoundf("ingredient %d", id)
	}
	return ingredient, nil
}

func ListIngredients(ctx context.Context, businessId string) ([]*Ingredient, error) {
	return utils.FetchAllModels[Ingredient](ctx, businessId)
}
