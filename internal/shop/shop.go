// Package shop wraps the storefront and admin endpoints. Every call goes
// through api.Client, so each request carries the session token and takes
// part in the 401 reaction.
package shop

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/existflow/topia/internal/api"
	"github.com/existflow/topia/internal/model"
)

// Shop groups the resource services
type Shop struct {
	Products   *Products
	Categories *Categories
	Orders     *Orders
	Coupons    *Coupons
	Users      *Users
}

// New creates the services over c
func New(c *api.Client) *Shop {
	return &Shop{
		Products:   &Products{c: c},
		Categories: &Categories{c: c},
		Orders:     &Orders{c: c},
		Coupons:    &Coupons{c: c},
		Users:      &Users{c: c},
	}
}

// Query filters a product listing
type Query struct {
	Keyword  string
	Category string
	Sort     string // price_asc, price_desc, rating, newest
	Page     int
}

func (q Query) encode() string {
	v := url.Values{}
	if q.Keyword != "" {
		v.Set("keyword", q.Keyword)
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// Products is the catalog
type Products struct{ c *api.Client }

// List returns one page of products
func (p *Products) List(ctx context.Context, q Query) (*model.ProductPage, error) {
	var page model.ProductPage
	if err := p.c.JSON(ctx, http.MethodGet, "/products"+q.encode(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Get returns one product
func (p *Products) Get(ctx context.Context, id string) (*model.Product, error) {
	var prod model.Product
	if err := p.c.JSON(ctx, http.MethodGet, "/products/"+url.PathEscape(id), nil, &prod); err != nil {
		return nil, err
	}
	return &prod, nil
}

// NewProduct is what an admin submits to create a product
type NewProduct struct {
	Name         string
	Description  string
	Price        float64
	CountInStock int
	Category     string

	// Optional image
	ImageName string
	Image     io.Reader
}

// Create uploads a product as multipart/form-data
func (p *Products) Create(ctx context.Context, np NewProduct) (*model.Product, error) {
	fields := map[string]string{
		"name":         np.Name,
		"description":  np.Description,
		"price":        strconv.FormatFloat(np.Price, 'f', -1, 64),
		"countInStock": strconv.Itoa(np.CountInStock),
		"category":     np.Category,
	}
	var files []api.File
	if np.Image != nil {
		files = append(files, api.File{Field: "image", Filename: np.ImageName, Content: np.Image})
	}

	var prod model.Product
	if err := p.c.Upload(ctx, http.MethodPost, "/products", fields, files, &prod); err != nil {
		return nil, err
	}
	return &prod, nil
}

// Categories lists product categories
type Categories struct{ c *api.Client }

// List returns every category
func (cs *Categories) List(ctx context.Context) ([]model.Category, error) {
	var out []model.Category
	if err := cs.c.JSON(ctx, http.MethodGet, "/categories", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Orders covers checkout and order management
type Orders struct{ c *api.Client }

// PlaceOrder is the checkout payload
type PlaceOrder struct {
	OrderItems      []model.OrderItem     `json:"orderItems"`
	ShippingAddress model.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                `json:"paymentMethod"`
	CouponCode      string                `json:"couponCode,omitempty"`
}

// Create places an order for the logged-in user
func (o *Orders) Create(ctx context.Context, po PlaceOrder) (*model.Order, error) {
	if len(po.OrderItems) == 0 {
		return nil, fmt.Errorf("order has no items")
	}
	var order model.Order
	if err := o.c.JSON(ctx, http.MethodPost, "/orders", po, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// Mine lists the logged-in user's orders
func (o *Orders) Mine(ctx context.Context) ([]model.Order, error) {
	var out []model.Order
	if err := o.c.JSON(ctx, http.MethodGet, "/orders/mine", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one order
func (o *Orders) Get(ctx context.Context, id string) (*model.Order, error) {
	var order model.Order
	if err := o.c.JSON(ctx, http.MethodGet, "/orders/"+url.PathEscape(id), nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateStatus moves an order to status (admin)
func (o *Orders) UpdateStatus(ctx context.Context, id string, status model.OrderStatus) (*model.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("unknown order status %q", status)
	}
	var order model.Order
	body := map[string]model.OrderStatus{"status": status}
	if err := o.c.JSON(ctx, http.MethodPut, "/orders/"+url.PathEscape(id)+"/status", body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// Coupons validates discount codes
type Coupons struct{ c *api.Client }

// Validate checks code and returns the coupon
func (cs *Coupons) Validate(ctx context.Context, code string) (*model.Coupon, error) {
	var coupon model.Coupon
	body := map[string]string{"code": code}
	if err := cs.c.JSON(ctx, http.MethodPost, "/coupons/validate", body, &coupon); err != nil {
		return nil, err
	}
	return &coupon, nil
}

// Users is the admin user list
type Users struct{ c *api.Client }

// List returns every user (admin)
func (u *Users) List(ctx context.Context) ([]model.User, error) {
	var out []model.User
	if err := u.c.JSON(ctx, http.MethodGet, "/users", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
