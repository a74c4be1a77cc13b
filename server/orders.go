package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"github.com/existflow/topia/internal/logger"
	"github.com/existflow/topia/internal/model"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type createOrderRequest struct {
	OrderItems      []model.OrderItem     `json:"orderItems"`
	ShippingAddress model.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                `json:"paymentMethod"`
	CouponCode      string                `json:"couponCode"`
}

const orderColumns = `id, user_id, items, shipping_address, payment_method, coupon_code, total_price, status, is_paid, created_at`

func scanOrder(row interface{ Scan(...any) error }) (*model.Order, error) {
	var (
		o               model.Order
		items, addr, at string
		status          string
		paid            int
	)
	err := row.Scan(&o.ID, &o.User, &items, &addr, &o.PaymentMethod, &o.CouponCode,
		&o.TotalPrice, &status, &paid, &at)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(items), &o.OrderItems); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(addr), &o.ShippingAddress); err != nil {
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	o.IsPaid = paid != 0
	o.CreatedAt = parseTime(at)
	return &o, nil
}

func (s *Server) orderByID(id string) (*model.Order, error) {
	return scanOrder(s.db.queryRow(`SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
}

// handleCreateOrder prices the items from the catalog, applies a coupon and
// takes the stock, all in one transaction
func (s *Server) handleCreateOrder(c echo.Context) error {
	var req createOrderRequest
	if err := c.Bind(&req); err != nil {
		return message(c, http.StatusBadRequest, "Invalid request")
	}
	if len(req.OrderItems) == 0 {
		return message(c, http.StatusBadRequest, "No order items")
	}
	if req.PaymentMethod == "" {
		return message(c, http.StatusBadRequest, "Payment method is required")
	}

	var discount float64
	if req.CouponCode != "" {
		cp, err := s.couponByCode(req.CouponCode)
		if errors.Is(err, sql.ErrNoRows) {
			return message(c, http.StatusBadRequest, "Invalid or expired coupon")
		}
		if err != nil {
			return s.internal(c, "Failed to load coupon", err)
		}
		discount = cp.Discount
		req.CouponCode = cp.Code
	}

	tx, err := s.db.Begin()
	if err != nil {
		return s.internal(c, "Failed to start transaction", err)
	}
	defer tx.Rollback()

	items := make([]model.OrderItem, 0, len(req.OrderItems))
	for _, it := range req.OrderItems {
		var name string
		var price float64
		var stock int
		err := tx.QueryRow(s.db.rebind(`SELECT name, price, count_in_stock FROM products WHERE id = ?`), it.Product).
			Scan(&name, &price, &stock)
		if errors.Is(err, sql.ErrNoRows) {
			return message(c, http.StatusBadRequest, "Product not found: "+it.Product)
		}
		if err != nil {
			return s.internal(c, "Failed to load product", err)
		}
		if it.Qty < 1 || it.Qty > stock {
			return message(c, http.StatusBadRequest, "Not enough stock for "+name)
		}
		if _, err := tx.Exec(s.db.rebind(`UPDATE products SET count_in_stock = count_in_stock - ? WHERE id = ?`), it.Qty, it.Product); err != nil {
			return s.internal(c, "Failed to update stock", err)
		}
		items = append(items, model.OrderItem{Product: it.Product, Name: name, Qty: it.Qty, Price: price})
	}

	total := model.ItemsTotal(items)
	if discount > 0 {
		total = math.Round(total*(100-discount)) / 100
	}

	o := model.Order{
		ID:              uuid.NewString(),
		User:            currentUser(c).ID,
		OrderItems:      items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		CouponCode:      req.CouponCode,
		TotalPrice:      total,
		Status:          model.OrderPending,
	}
	itemsJSON, _ := json.Marshal(o.OrderItems)
	addrJSON, _ := json.Marshal(o.ShippingAddress)
	at := now()

	_, err = tx.Exec(s.db.rebind(`
		INSERT INTO orders (id, user_id, items, shipping_address, payment_method, coupon_code, total_price, status, is_paid, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		o.ID, o.User, string(itemsJSON), string(addrJSON), o.PaymentMethod, o.CouponCode,
		o.TotalPrice, string(o.Status), boolInt(o.IsPaid), at,
	)
	if err != nil {
		return s.internal(c, "Failed to create order", err)
	}
	if err := tx.Commit(); err != nil {
		return s.internal(c, "Failed to commit order", err)
	}
	o.CreatedAt = parseTime(at)

	s.log.Info("Order placed", logger.F("order_id", o.ID), logger.F("user_id", o.User), logger.F("total", o.TotalPrice))
	return c.JSON(http.StatusCreated, o)
}

func (s *Server) handleMyOrders(c echo.Context) error {
	rows, err := s.db.query(`SELECT `+orderColumns+` FROM orders WHERE user_id = ? ORDER BY created_at DESC`, currentUser(c).ID)
	if err != nil {
		return s.internal(c, "Failed to list orders", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return s.internal(c, "Failed to read order", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return s.internal(c, "Failed to list orders", err)
	}
	return c.JSON(http.StatusOK, orders)
}

// handleGetOrder shows an order to its owner or an admin
func (s *Server) handleGetOrder(c echo.Context) error {
	o, err := s.orderByID(c.Param("id"))
	if errors.Is(err, sql.ErrNoRows) {
		return message(c, http.StatusNotFound, "Order not found")
	}
	if err != nil {
		return s.internal(c, "Failed to load order", err)
	}

	u := currentUser(c)
	if o.User != u.ID && !u.IsAdmin {
		return message(c, http.StatusNotFound, "Order not found")
	}
	return c.JSON(http.StatusOK, o)
}

func (s *Server) handleUpdateOrderStatus(c echo.Context) error {
	var req struct {
		Status model.OrderStatus `json:"status"`
	}
	if err := c.Bind(&req); err != nil || !req.Status.Valid() {
		return message(c, http.StatusBadRequest, "Invalid order status")
	}

	res, err := s.db.exec(`UPDATE orders SET status = ?, is_paid = CASE WHEN ? = 'delivered' THEN 1 ELSE is_paid END WHERE id = ?`,
		string(req.Status), string(req.Status), c.Param("id"))
	if err != nil {
		return s.internal(c, "Failed to update order", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return message(c, http.StatusNotFound, "Order not found")
	}

	o, err := s.orderByID(c.Param("id"))
	if err != nil {
		return s.internal(c, "Failed to load order", err)
	}
	s.log.Info("Order status changed", logger.F("order_id", o.ID), logger.F("status", string(o.Status)))
	return c.JSON(http.StatusOK, o)
}
