package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID           int64           `json:"id" db:"user_id"`
	Email        string          `json:"email" db:"email"`
	PasswordHash string          `json:"-" db:"password_hash"`
	Balance      decimal.Decimal `json:"balance" db:"balance"`
	IsAdmin      bool            `json:"is_admin" db:"is_admin"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

type Product struct {
	ID            int64  `json:"id" db:"product_id"`
	SubcategoryID int64  `json:"subcategory_id" db:"subcategory_id"`
	Title         string `json:"title" db:"title"`
	Description   string `json:"description" db:"description"`
}

// Parameter is one purchasable version of a product.
type Parameter struct {
	ID        int64           `json:"id" db:"parameter_id"`
	ProductID int64           `json:"product_id" db:"product_id"`
	Title     string          `json:"title" db:"title"`
	Price     decimal.Decimal `json:"price" db:"price"`
	HasSale   bool            `json:"has_sale" db:"has_sale"`
	SalePrice decimal.Decimal `json:"sale_price" db:"sale_price"`
	GiveType  string          `json:"give_type" db:"give_type"`
}

type CartItem struct {
	ParameterID int64           `json:"parameter_id" db:"parameter_id"`
	Title       string          `json:"title" db:"title"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Count       int             `json:"count" db:"count"`
}

type Promocode struct {
	ID int64 `json:"id" db:"promocode_id"`

	Name string `json:"name" db:"name"`
	// ActivationsCount of -1 means unlimited redemptions.
	ActivationsCount int     `json:"activations_count" db:"activations_count"`
	SalePercent      float64 `json:"sale_percent" db:"sale_percent"`
}

type Order struct {
	ID          int64               `json:"id" db:"order_id"`
	Number      string              `json:"number" db:"number"`
	UserID      int64               `json:"-" db:"user_id"`
	PromocodeID *int64              `json:"-" db:"promocode_id"`
	Straight    bool                `json:"straight" db:"straight"`
	ResultPrice decimal.NullDecimal `json:"result_price" db:"result_price"`
	Status      string              `json:"status" db:"status"`
	Email       string              `json:"email" db:"email"`
	PaymentType string              `json:"payment_type" db:"payment_type"`
	CreatedAt   time.Time           `json:"created_at" db:"created_at"`
}

// OrderParameter is a line item of an order.
type OrderParameter struct {
	OrderID     int64 `db:"order_id"`
	ParameterID int64 `db:"parameter_id"`
	Count       int   `db:"count"`
}

// OrderItem is a delivered position of a finished order: the parameter
// plus the concrete stock values (keys, files) assigned to it.
type OrderItem struct {
	ParameterID int64    `json:"id"`
	Title       string   `json:"title"`
	GiveType    string   `json:"give_type"`
	Count       int      `json:"count"`
	Items       []string `json:"items"`
}

type Replenish struct {
	ID          int64               `json:"id" db:"replenish_id"`
	Number      string              `json:"number" db:"number"`
	UserID      int64               `json:"-" db:"user_id"`
	ResultPrice decimal.NullDecimal `json:"result_price" db:"result_price"`
	PaymentType string              `json:"payment_type" db:"payment_type"`
	Status      string              `json:"status" db:"status"`
	CreatedAt   time.Time           `json:"created_at" db:"created_at"`
	PayedAt     *time.Time          `json:"payed_at,omitempty" db:"payed_at"`
}

type Review struct {
	ID        int64     `json:"id" db:"review_id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	ProductID int64     `json:"product_id" db:"product_id"`
	OrderID   int64     `json:"-" db:"order_id"`
	Rate      int       `json:"rate" db:"rate"`
	Text      string    `json:"text" db:"text"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

const (
	StatusWaitingPayment = "waiting_payment"
	StatusCanceled       = "canceled"
	StatusFinished       = "finished"

	PaymentTypeSBP         = "sbp"
	PaymentTypeSiteBalance = "site_balance"

	GiveTypeString = "string"
	GiveTypeFile   = "file"
	GiveTypeHand   = "hand"
)
