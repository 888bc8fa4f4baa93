package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/bakery_backend/config"
	"bitbucket.org/mmdatafocus/bakery_backend/utils"
	"github.com/google/uuid"
)

type Business struct {
	ID           uuid.UUID `gorm:"primary_key" json:"id"`
	Name         string    `gorm:"index;size:100;not null" json:"name" binding:"required"`
	ContactName  string    `gorm:"size:100" json:"contact_name"`
	Email        string    `gorm:"size:255" json:"email"`
	Phone        string    `gorm:"size:20" json:"phone"`
	Address      string    `gorm:"type:text" json:"address"`
	Timezone     string    `gorm:"size:50" json:"timezone"`
	CurrencyCode string    `gorm:"size:10;default:MMK" json:"currency_code"`
	// WeightUnit is the unit base preparation output weights are recorded in.
	WeightUnit string    `gorm:"size:10;default:kg" json:"weight_unit"`
	IsActive   *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBusiness struct {
	Name         string `json:"name" binding:"required"`
	ContactName  string `json:"contact_name"`
	Email        string `json:"email" binding:"required"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	Timezone     string `json:"timezone"`
	CurrencyCode string `json:"currency_code"`
	WeightUnit   string `json:"weight_unit"`
}

func (business *Business) StoreRedis() error {
	return config.SetRedisObject("Business:"+fmt.Sprint(business.ID), business, 0)
}

func (business *Business) RemoveRedis() error {
	return config.DeleteRedisKey("Business:" + fmt.Sprint(business.ID))
}

func (input *NewBusiness) validate(ctx context.Context, id string) error {
	if err := utils.ValidateUnique[Business](ctx, "", "name", input.Name, id); err != nil {
		return err
	}
	if err := utils.ValidateUnique[Business](ctx, "", "email", input.Email, id); err != nil {
		return err
	}
	if input.Phone != "" {
		if err := utils.ValidateUnique[Business](ctx, "", "phone", input.Phone, id); err != nil {
			return err
		}
	}
	return nil
}

func CreateBusiness(ctx context.Context, input *NewBusiness) (*Business, error) {
	if err := input.validate(ctx, ""); err != nil {
		return nil, err
	}

	business := Business{
		ID:           uuid.New(),
		Name:         input.Name,
		ContactName:  input.ContactName,
		Email:        input.Email,
		Phone:        input.Phone,
		Address:      input.Address,
		Timezone:     input.Timezone,
		CurrencyCode: input.CurrencyCode,
		WeightUnit:   input.WeightUnit,
		IsActive:     utils.NewTrue(),
	}
	if business.Timezone == "" {
		business.Timezone = "Asia/Yangon"
	}
	if business.CurrencyCode == "" {
		business.CurrencyCode = "MMK"
	}
	if business.WeightUnit == "" {
		business.WeightUnit = "kg"
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&business).Error; err != nil {
		return nil, err
	}
	return &business, nil
}

func GetBusinessById(ctx context.Context, id string) (*Business, error) {

	var result Business

	exists, err := config.GetRedisObject("Business:"+id, &result)
	if err != nil {
		return nil, err
	}

	if !exists {
		db := config.GetDB()
		// db query
		err := db.WithContext(ctx).Where("id = ?", id).First(&result).Error
		if err != nil {
			return nil, utils.NotFoundf("business %s", id)
		}
		// caching
		if err := result.StoreRedis(); err != nil {
			return nil, err
		}
	}
	return &result, nil
}

// BusinessDate normalizes a timestamp to the business day it falls in.
func BusinessDate(ctx context.Context, businessId string, t time.Time) (time.Time, error) {
	business, err := GetBusinessById(ctx, businessId)
	if err != nil {
		return time.Time{}, err
	}
	return utils.ConvertToDate(t, business.Timezone)
}
