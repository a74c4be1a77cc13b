package server

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/existflow/topia/internal/logger"
	"github.com/existflow/topia/internal/model"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const pageSize = 8

const productColumns = `id, name, description, price, count_in_stock, category, image, rating, num_reviews`

var productOrder = map[string]string{
	"price_asc":  "price ASC",
	"price_desc": "price DESC",
	"rating":     "rating DESC",
	"newest":     "created_at DESC",
}

func scanProduct(row interface{ Scan(...any) error }) (model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.CountInStock,
		&p.Category, &p.Image, &p.Rating, &p.NumReviews)
	return p, err
}

// handleListProducts pages through the catalog with optional keyword,
// category and sort filters
func (s *Server) handleListProducts(c echo.Context) error {
	var where []string
	var args []any
	if kw := strings.TrimSpace(c.QueryParam("keyword")); kw != "" {
		where = append(where, "LOWER(name) LIKE ?")
		args = append(args, "%"+strings.ToLower(kw)+"%")
	}
	if cat := c.QueryParam("category"); cat != "" {
		where = append(where, "category = ?")
		args = append(args, cat)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	order, ok := productOrder[c.QueryParam("sort")]
	if !ok {
		order = productOrder["newest"]
	}
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}

	var total int
	if err := s.db.queryRow(`SELECT COUNT(*) FROM products`+clause, args...).Scan(&total); err != nil {
		return s.internal(c, "Failed to count products", err)
	}

	rows, err := s.db.query(`SELECT `+productColumns+` FROM products`+clause+
		` ORDER BY `+order+`, id LIMIT ? OFFSET ?`,
		append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return s.internal(c, "Failed to list products", err)
	}
	defer rows.Close()

	result := model.ProductPage{Products: []model.Product{}, Page: page, Total: total}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return s.internal(c, "Failed to read product", err)
		}
		result.Products = append(result.Products, p)
	}
	if err := rows.Err(); err != nil {
		return s.internal(c, "Failed to list products", err)
	}
	result.Pages = (total + pageSize - 1) / pageSize

	return c.JSON(http.StatusOK, result)
}

func (s *Server) productByID(id string) (model.Product, error) {
	return scanProduct(s.db.queryRow(`SELECT `+productColumns+` FROM products WHERE id = ?`, id))
}

func (s *Server) handleGetProduct(c echo.Context) error {
	p, err := s.productByID(c.Param("id"))
	if errors.Is(err, sql.ErrNoRows) {
		return message(c, http.StatusNotFound, "Product not found")
	}
	if err != nil {
		return s.internal(c, "Failed to load product", err)
	}
	return c.JSON(http.StatusOK, p)
}

// handleCreateProduct takes multipart form fields and an optional image
func (s *Server) handleCreateProduct(c echo.Context) error {
	p := model.Product{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(c.FormValue("name")),
		Description: c.FormValue("description"),
		Category:    c.FormValue("category"),
	}
	if p.Name == "" {
		return message(c, http.StatusBadRequest, "Product name is required")
	}

	var err error
	if p.Price, err = strconv.ParseFloat(c.FormValue("price"), 64); err != nil || p.Price < 0 {
		return message(c, http.StatusBadRequest, "Invalid price")
	}
	if v := c.FormValue("countInStock"); v != "" {
		if p.CountInStock, err = strconv.Atoi(v); err != nil || p.CountInStock < 0 {
			return message(c, http.StatusBadRequest, "Invalid stock count")
		}
	}

	if fh, err := c.FormFile("image"); err == nil {
		name, err := s.saveUpload(fh)
		if err != nil {
			return s.internal(c, "Failed to store image", err)
		}
		p.Image = "/uploads/" + name
	}

	_, err = s.db.exec(`
		INSERT INTO products (id, name, description, price, count_in_stock, category, image, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.Price, p.CountInStock, p.Category, p.Image, now(),
	)
	if err != nil {
		return s.internal(c, "Failed to create product", err)
	}

	s.log.Info("Product created", logger.F("product_id", p.ID), logger.F("by", currentUser(c).ID))
	return c.JSON(http.StatusCreated, p)
}

// saveUpload copies an upload into the upload dir under a fresh name
func (s *Server) saveUpload(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	name := uuid.NewString() + strings.ToLower(filepath.Ext(fh.Filename))
	dst, err := os.Create(filepath.Join(s.uploadDir, name))
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	return name, nil
}

func (s *Server) handleListCategories(c echo.Context) error {
	rows, err := s.db.query(`SELECT id, name, slug FROM categories ORDER BY name`)
	if err != nil {
		return s.internal(c, "Failed to list categories", err)
	}
	defer rows.Close()

	cats := []model.Category{}
	for rows.Next() {
		var cat model.Category
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.Slug); err != nil {
			return s.internal(c, "Failed to read category", err)
		}
		cats = append(cats, cat)
	}
	if err := rows.Err(); err != nil {
		return s.internal(c, "Failed to list categories", err)
	}
	return c.JSON(http.StatusOK, cats)
}

// couponByCode returns a coupon that exists and has not expired
func (s *Server) couponByCode(code string) (*model.Coupon, error) {
	var cp model.Coupon
	err := s.db.queryRow(`SELECT code, discount, expires_at FROM coupons WHERE code = ?`,
		strings.ToUpper(strings.TrimSpace(code))).Scan(&cp.Code, &cp.Discount, &cp.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if cp.ExpiresAt != "" {
		if exp, err := time.Parse(time.RFC3339, cp.ExpiresAt); err == nil && time.Now().After(exp) {
			return nil, sql.ErrNoRows
		}
	}
	return &cp, nil
}

func (s *Server) handleValidateCoupon(c echo.Context) error {
	var req struct {
		Code string `json:"code"`
	}
	if err := c.Bind(&req); err != nil || req.Code == "" {
		return message(c, http.StatusBadRequest, "Coupon code is required")
	}

	cp, err := s.couponByCode(req.Code)
	if errors.Is(err, sql.ErrNoRows) {
		return message(c, http.StatusNotFound, "Invalid or expired coupon")
	}
	if err != nil {
		return s.internal(c, "Failed to load coupon", err)
	}
	return c.JSON(http.StatusOK, cp)
}
