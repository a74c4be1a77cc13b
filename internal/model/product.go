package model

// Product is a catalog entry
type Product struct {
	ID           string  `json:"_id"`
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	Price        float64 `json:"price"`
	CountInStock int     `json:"countInStock"`
	Category     string  `json:"category,omitempty"`
	Image        string  `json:"image,omitempty"`
	Rating       float64 `json:"rating"`
	NumReviews   int     `json:"numReviews"`
}

// InStock reports whether at least one unit is available
func (p Product) InStock() bool {
	return p.CountInStock > 0
}

// Category groups products
type Category struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// ProductPage is one page of a product listing
type ProductPage struct {
	Products []Product `json:"products"`
	Page     int       `json:"page"`
	Pages    int       `json:"pages"`
	Total    int       `json:"total"`
}

// Coupon is a validated discount code
type Coupon struct {
	Code      string  `json:"code"`
	Discount  float64 `json:"discount"` // percent
	ExpiresAt string  `json:"expiresAt,omitempty"`
}
