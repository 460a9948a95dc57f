package entity

import "time"

type ProductImage struct {
	ID           string `json:"id" firestore:"id"`
	URL          string `json:"url" firestore:"url"`
	DisplayOrder int    `json:"display_order" firestore:"displayOrder"`
}

type Product struct {
	ID          string         `json:"id" firestore:"id"`
	SellerID    string         `json:"seller_id" firestore:"sellerId"`
	Title       string         `json:"title" firestore:"title"`
	Description string         `json:"description,omitempty" firestore:"description,omitempty"`
	Price       float64        `json:"price" firestore:"price"`
	Images      []ProductImage `json:"images,omitempty" firestore:"images,omitempty"`
	Status      string         `json:"status" firestore:"status"`

	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updatedAt"`
}
