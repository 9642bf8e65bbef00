package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	GenderMen    = "men"
	GenderWomen  = "women"
	GenderKid    = "kid"
	GenderUnisex = "unisex"
)

// Product 商品；Images 为图片 URL，按位置排序
type Product struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Price       float64    `json:"price"`
	Description string     `json:"description"`
	Slug        string     `json:"slug"`
	Stock       int        `json:"stock"`
	Sizes       []string   `json:"sizes"`
	Gender      string     `json:"gender"`
	Tags        []string   `json:"tags"`
	Images      []string   `json:"images"`
	UserID      *uuid.UUID `json:"userId,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Slugify lowercases s, turns spaces into '_' and drops apostrophes.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	return strings.ReplaceAll(s, "'", "")
}
