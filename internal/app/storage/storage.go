package storage

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/axegao/axegaoshop/internal/app/entity"
	"github.com/axegao/axegaoshop/internal/app/payment"
)

var ErrInsufficientFunds = errors.New("insufficient funds")
var ErrReviewExists = errors.New("review already left for this order")

type Repository interface {
	// users
	CreateUser(email string, passwordHash string) (int64, error)
	UserByEmail(email string) (entity.User, error)
	UserByID(userID int64) (entity.User, error)
	WithdrawBalance(userID int64, amount decimal.Decimal) error

	// catalog
	CreateProduct(p entity.Product) (int64, error)
	CreateParameter(p entity.Parameter) (int64, error)
	AddParameterItems(parameterID int64, values []string) error
	Products() ([]entity.Product, error)
	ProductByID(productID int64) (entity.Product, []entity.Parameter, error)
	ParameterByID(parameterID int64) (entity.Parameter, error)

	// cart
	CartItems(userID int64) ([]entity.CartItem, error)
	AddCartItem(userID int64, parameterID int64, count int) error
	RemoveCartItem(userID int64, parameterID int64) error
	ClearCart(userID int64) error

	// promocodes
	CreatePromocode(p entity.Promocode) (int64, error)
	PromocodeByName(name string) (entity.Promocode, error)
	UsePromocode(promocodeID int64) error

	// orders
	CreateOrder(o entity.Order, params []entity.OrderParameter) (entity.Order, error)
	OrderByID(orderID int64, userID int64) (entity.Order, error)
	OrderStatus(orderID int64) (string, error)
	OrderPricedItems(orderID int64) ([]payment.PricedItem, error)
	SetOrderPrice(orderID int64, price decimal.Decimal) error
	FinishOrder(orderID int64) (bool, error)
	CancelOrder(orderID int64) (bool, error)
	CancelUserPendingOrders(userID int64) ([]decimal.Decimal, error)
	CancelStaleOrders(olderThan time.Time) ([]decimal.Decimal, error)
	OrderItems(orderID int64) ([]entity.OrderItem, error)

	// replenishes
	CreateReplenish(r entity.Replenish) (entity.Replenish, error)
	ReplenishByNumber(number string, userID int64) (entity.Replenish, error)
	FinishReplenish(replenishID int64, userID int64, amount decimal.Decimal) (bool, error)
	CancelStaleReplenishes(olderThan time.Time) ([]decimal.Decimal, error)
	FinishedReplenishes(userID int64) ([]entity.Replenish, error)

	// reviews
	PurchasedOrderID(userID int64, productID int64) (int64, error)
	CreateReview(r entity.Review) (int64, error)
	ProductReviews(productID int64) ([]entity.Review, error)

	Close()
}
