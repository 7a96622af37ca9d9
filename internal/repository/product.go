package repository

import (
	"context"

	"mpesa-checkout/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductRepository interface {
	Seed(ctx context.Context) error
	FindMany(ctx context.Context, productIDs []string) ([]*model.Product, error)
}

type productRepoImpl struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepoImpl{
		db: db,
	}
}

func (r *productRepoImpl) Seed(ctx context.Context) error {
	products := []model.Product{
		{ID: "zaminocal-plus", Name: "Zaminocal Plus Calcium Tablets", Price: decimal.NewFromInt(2650), Active: true},
		{ID: "gluzojoint-f", Name: "GluzoJoint-F Capsules", Price: decimal.NewFromInt(2900), Active: true},
		{ID: "refined-yunzhi", Name: "Refined Yunzhi Essence", Price: decimal.NewFromInt(5265), Active: true},
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&products).Error
}

func (r *productRepoImpl) FindMany(ctx context.Context, productIDs []string) ([]*model.Product, error) {
	var products []*model.Product
	err := r.db.WithContext(ctx).
		Where("id IN ?", productIDs).
		Where("active = ?", true).
		Find(&products).Error

	if err != nil {
		return nil, err
	}

	return products, nil
}
