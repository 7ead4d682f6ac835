package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Category struct {
	Base
	Name  string `gorm:"size:50;uniqueIndex;not null" json:"name"`
	Image string `gorm:"not null"                     json:"image"`
}

func (Category) TableName() string {
	return "categories"
}

type ProductColor struct {
	Name   string   `json:"name"`
	Images []string `json:"images"`
}

type Product struct {
	Base
	Name          string          `gorm:"size:255;not null"           json:"name"`
	Description   string          `gorm:"type:text;not null"          json:"description"`
	ActualPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"actualPrice"`
	DiscountPrice decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"discountPrice"`
	Rating        float64         `gorm:"default:0"                   json:"rating"`
	Colors        []ProductColor  `gorm:"type:text;serializer:json"   json:"colors"`
	PrimaryImage  string          `gorm:"not null"                    json:"primaryImage"`
	Features      string          `gorm:"type:text"                   json:"features"`
	CategoryID    uuid.UUID       `gorm:"type:uuid;index;not null"    json:"categoryId"`
	Category      *Category       `gorm:"foreignKey:CategoryID"       json:"category,omitempty"`
	IsNewArrival  bool            `gorm:"index;default:false"         json:"isNewArrival"`
	IsFeatured    bool            `gorm:"index;default:false"         json:"isFeatured"`
	InStock       bool            `gorm:"not null"                    json:"inStock"`
}

func (Product) TableName() string {
	return "products"
}

// HasImage reports whether img belongs to one of the color variants.
func (p Product) HasImage(img string) bool {
	for _, c := range p.Colors {
		for _, i := range c.Images {
			if i == img {
				return true
			}
		}
	}
	return false
}
