package model

import "time"

type Product struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id" bson:"_id"`
	Name      string    `gorm:"size:255;not null" json:"name" bson:"name"`
	Slug      string    `gorm:"size:255;uniqueIndex" json:"slug" bson:"slug"`
	Price     float64   `gorm:"not null" json:"price" bson:"price"`
	ImageURL  string    `gorm:"size:512" json:"image_url" bson:"image_url"`
	Stock     int       `json:"stock" bson:"stock"`
	IsActive  bool      `gorm:"not null" json:"is_active" bson:"is_active"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

type CreateProductInput struct {
	Name     string  `json:"name" validate:"required,max=255"`
	Price    float64 `json:"price" validate:"required,gt=0"`
	ImageURL string  `json:"image_url" validate:"omitempty,url,max=512"`
	Stock    int     `json:"stock" validate:"gte=0"`
	IsActive *bool   `json:"is_active"`
}

type ProductQuery struct {
	Page  int `query:"page" validate:"omitempty,min=1"`
	Limit int `query:"limit" validate:"omitempty,min=1,max=100"`
}

type PaginatedProducts struct {
	Items      []Product `json:"items"`
	Pagination PageInfo  `json:"pagination"`
}
