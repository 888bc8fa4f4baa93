package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/bakery_backend/config"
	"bitbucket.org/mmdatafocus/bakery_backend/utils"
	"github.com/shopspring/decimal"
)

// Product is a finished sellable item. ProductionCost is derived, written
// back by recipe recalculation; SellingPrice drives expected-cash figures in
// settlements.
type Product struct {
	ID         int    `gorm:"primary_key" json:"id"`
	BusinessId string `gorm:"index;size:100;not null" json:"business_id"`
	Name       string `gorm:"index;size:100;not null" json:"name" binding:"required"`
	Sku        string `gorm:"size:100" json:"sku"`
	// SellingPrice uses 2 decimal places of the business currency.
	SellingPrice   decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"selling_price"`
	ProductionCost decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"production_cost"`
	IsActive       *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name         string          `json:"name" binding:"required"`
	Sku          string          `json:"sku"`
	SellingPrice decimal.Decimal `json:"selling_price"`
}

func (input *NewProduct) validate(ctx context.Context, businessId string, exceptId int) error {
	if err := utils.ValidateUnique[Product](ctx, businessId, "name", input.Name, exceptId); err != nil {
		return err
	}
	if input.SellingPrice.IsNegative() {
		return utils.InvalidQuantityf("selling price must not be negative")
	}
	return nil
}

func CreateProduct(ctx context.Context, businessId string, input *NewProduct) (*Product, error) {
	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	product := Product{
		BusinessId:   businessId,
		Name:         input.Name,
		Sku:          input.Sku,
		SellingPrice: input.SellingPrice.Round(2),
		IsActive:     utils.NewTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func UpdateProduct(ctx context.Context, businessId string, id int, input *NewProduct) (*Product, error) {
	product, err := utils.FetchModel[Product](ctx, businessId, id)
	if err != nil {
		return nil, utils.NotFoundf("product %d", id)
	}
	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	product.Name = input.Name
	product.Sku = input.Sku
	product.SellingPrice = input.SellingPrice.Round(2)

	db := config.GetDB()
	if err := db.WithContext(ctx).Save(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

func GetProduct(ctx context.Context, businessId string, id int) (*Product, error) {
	product, err := utils.FetchModel[Product](ctx, businessId, id)
	if err != nil {
		return nil, utils.NotFoundf("product %d", id)
	}
	return product, nil
}

func ListProducts(ctx context.Context, businessId string) ([]*Product, error) {
	return utils.FetchAllModels[Product](ctx, businessId)
}
