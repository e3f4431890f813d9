package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/axegao/axegaoshop/internal/app/entity"
	"github.com/axegao/axegaoshop/internal/app/logger"
	"github.com/axegao/axegaoshop/internal/app/payment"
)

var schema = `
CREATE TABLE IF NOT EXISTS users(
	user_id			SERIAL PRIMARY KEY,
	email			TEXT NOT NULL UNIQUE,
	password_hash	TEXT NOT NULL,
	balance			NUMERIC(15,2) NOT NULL DEFAULT 0.00,
	is_admin		BOOLEAN NOT NULL DEFAULT FALSE,
	created_at		TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS products(
	product_id		SERIAL PRIMARY KEY,
	subcategory_id	INTEGER NOT NULL DEFAULT 0,
	title			TEXT NOT NULL,
	description		TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS parameters(
	parameter_id	SERIAL PRIMARY KEY,
	product_id		INTEGER NOT NULL REFERENCES products(product_id),
	title			TEXT NOT NULL,
	price			NUMERIC(15,2) NOT NULL,
	has_sale		BOOLEAN NOT NULL DEFAULT FALSE,
	sale_price		NUMERIC(15,2) NOT NULL DEFAULT 0.00,
	give_type		VARCHAR(30) NOT NULL DEFAULT 'string'
);

CREATE TABLE IF NOT EXISTS product_items(
	item_id			SERIAL PRIMARY KEY,
	parameter_id	INTEGER NOT NULL REFERENCES parameters(parameter_id),
	value			TEXT NOT NULL,
	order_id		INTEGER
);

CREATE TABLE IF NOT EXISTS cart_items(
	user_id			INTEGER NOT NULL,
	parameter_id	INTEGER NOT NULL,
	count			INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (user_id, parameter_id)
);

CREATE TABLE IF NOT EXISTS promocodes(
	promocode_id		SERIAL PRIMARY KEY,
	name				VARCHAR(100) NOT NULL UNIQUE,
	activations_count	INTEGER NOT NULL DEFAULT 1,
	sale_percent		DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS orders(
	order_id		SERIAL PRIMARY KEY,
	number			TEXT NOT NULL UNIQUE,
	user_id			INTEGER NOT NULL,
	promocode_id	INTEGER,
	straight		BOOLEAN NOT NULL DEFAULT TRUE,
	result_price	NUMERIC(15,2),
	status			VARCHAR(20) NOT NULL DEFAULT 'waiting_payment',
	email			TEXT NOT NULL,
	payment_type	VARCHAR(20) NOT NULL,
	created_at		TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS order_parameters(
	order_id		INTEGER NOT NULL REFERENCES orders(order_id),
	parameter_id	INTEGER NOT NULL REFERENCES parameters(parameter_id),
	count			INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS replenishes(
	replenish_id	SERIAL PRIMARY KEY,
	number			TEXT NOT NULL UNIQUE,
	user_id			INTEGER NOT NULL,
	result_price	NUMERIC(15,2),
	payment_type	VARCHAR(20) NOT NULL,
	status			VARCHAR(20) NOT NULL DEFAULT 'waiting_payment',
	created_at		TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
	payed_at		TIMESTAMP WITH TIME ZONE
);

CREATE TABLE IF NOT EXISTS reviews(
	review_id		SERIAL PRIMARY KEY,
	user_id			INTEGER NOT NULL,
	product_id		INTEGER NOT NULL,
	order_id		INTEGER NOT NULL,
	rate			INTEGER NOT NULL,
	text			TEXT NOT NULL,
	created_at		TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
	UNIQUE (order_id, product_id)
);`

type RepoDB struct {
	db *sqlx.DB
}

func NewRepoDB(databaseURI string) (*RepoDB, error) {
	db, err := sqlx.Connect("pgx", databaseURI)
	if err != nil {
		return nil, err
	}

	db.MustExec(schema)

	return &RepoDB{db: db}, nil
}

func (r *RepoDB) CreateUser(email string, passwordHash string) (int64, error) {
	var userID int64
	querySaveUser := `INSERT INTO users (email, password_hash) VALUES ($1, $2) RETURNING user_id`
	err := r.db.Get(&userID, querySaveUser, email, passwordHash)
	if err != nil {
		return 0, err
	}
	return userID, nil
}

func (r *RepoDB) UserByEmail(email string) (entity.User, error) {
	var user entity.User
	queryGetUser := `SELECT user_id, email, password_hash, balance, is_admin, created_at FROM users WHERE email = ($1)`
	err := r.db.Get(&user, queryGetUser, email)
	return user, err
}

func (r *RepoDB) UserByID(userID int64) (entity.User, error) {
	var user entity.User
	queryGetUser := `SELECT user_id, email, password_hash, balance, is_admin, created_at FROM users WHERE user_id = ($1)`
	err := r.db.Get(&user, queryGetUser, userID)
	return user, err
}

func (r *RepoDB) WithdrawBalance(userID int64, amount decimal.Decimal) error {
	queryWithdraw := `UPDATE users SET balance = balance - ($1) WHERE user_id = ($2) RETURNING balance`

	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer rollback(tx)

	var newBalance decimal.Decimal
	if err = tx.QueryRow(queryWithdraw, amount, userID).Scan(&newBalance); err != nil {
		return err
	}
	if newBalance.IsNegative() {
		return ErrInsufficientFunds
	}

	return tx.Commit()
}

func (r *RepoDB) CreateProduct(p entity.Product) (int64, error) {
	var productID int64
	querySaveProduct := `INSERT INTO products (subcategory_id, title, description) VALUES ($1, $2, $3) RETURNING product_id`
	err := r.db.Get(&productID, querySaveProduct, p.SubcategoryID, p.Title, p.Description)
	return productID, err
}

func (r *RepoDB) CreateParameter(p entity.Parameter) (int64, error) {
	var parameterID int64
	querySaveParameter := `INSERT INTO parameters (product_id, title, price, has_sale, sale_price, give_type)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING parameter_id`
	err := r.db.Get(&parameterID, querySaveParameter, p.ProductID, p.Title, p.Price, p.HasSale, p.SalePrice, p.GiveType)
	return parameterID, err
}

func (r *RepoDB) AddParameterItems(parameterID int64, values []string) error {
	queryAddItem := `INSERT INTO product_items (parameter_id, value) VALUES ($1, $2)`

	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer rollback(tx)

	for _, value := range values {
		if _, err = tx.Exec(queryAddItem, parameterID, value); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *RepoDB) Products() ([]entity.Product, error) {
	var products []entity.Product
	queryGetProducts := `SELECT product_id, subcategory_id, title, description FROM products`
	err := r.db.Select(&products, queryGetProducts)
	return products, err
}

func (r *RepoDB) ProductByID(productID int64) (entity.Product, []entity.Parameter, error) {
	var product entity.Product
	queryGetProduct := `SELECT product_id, subcategory_id, title, description FROM products WHERE product_id = ($1)`
	if err := r.db.Get(&product, queryGetProduct, productID); err != nil {
		return product, nil, err
	}

	var parameters []entity.Parameter
	queryGetParameters := `SELECT parameter_id, product_id, title, price, has_sale, sale_price, give_type
		FROM parameters WHERE product_id = ($1)`
	if err := r.db.Select(&parameters, queryGetParameters, productID); err != nil {
		return product, nil, err
	}
	return product, parameters, nil
}

func (r *RepoDB) ParameterByID(parameterID int64) (entity.Parameter, error) {
	var parameter entity.Parameter
	queryGetParameter := `SELECT parameter_id, product_id, title, price, has_sale, sale_price, give_type
		FROM parameters WHERE parameter_id = ($1)`
	err := r.db.Get(&parameter, queryGetParameter, parameterID)
	return parameter, err
}

func (r *RepoDB) CartItems(userID int64) ([]entity.CartItem, error) {
	var items []entity.CartItem
	queryGetCart := `SELECT c.parameter_id, p.title, p.price, c.count
		FROM cart_items c JOIN parameters p ON p.parameter_id = c.parameter_id
		WHERE c.user_id = ($1)`
	err := r.db.Select(&items, queryGetCart, userID)
	return items, err
}

func (r *RepoDB) AddCartItem(userID int64, parameterID int64, count int) error {
	queryAddItem := `INSERT INTO cart_items (user_id, parameter_id, count) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, parameter_id) DO UPDATE SET count = cart_items.count + ($3)`
	_, err := r.db.Exec(queryAddItem, userID, parameterID, count)
	return err
}

func (r *RepoDB) RemoveCartItem(userID int64, parameterID int64) error {
	queryRemoveItem := `DELETE FROM cart_items WHERE user_id = ($1) AND parameter_id = ($2)`
	_, err := r.db.Exec(queryRemoveItem, userID, parameterID)
	return err
}

func (r *RepoDB) ClearCart(userID int64) error {
	queryClearCart := `DELETE FROM cart_items WHERE user_id = ($1)`
	_, err := r.db.Exec(queryClearCart, userID)
	return err
}

func (r *RepoDB) CreatePromocode(p entity.Promocode) (int64, error) {
	var promocodeID int64
	querySavePromocode := `INSERT INTO promocodes (name, activations_count, sale_percent) VALUES ($1, $2, $3) RETURNING promocode_id`
	err := r.db.Get(&promocodeID, querySavePromocode, p.Name, p.ActivationsCount, p.SalePercent)
	return promocodeID, err
}

func (r *RepoDB) PromocodeByName(name string) (entity.Promocode, error) {
	var promocode entity.Promocode
	queryGetPromocode := `SELECT promocode_id, name, activations_count, sale_percent FROM promocodes WHERE name = ($1)`
	err := r.db.Get(&promocode, queryGetPromocode, name)
	return promocode, err
}

func (r *RepoDB) UsePromocode(promocodeID int64) error {
	// -1 marks an unlimited code and is never decremented
	queryUsePromocode := `UPDATE promocodes SET activations_count = activations_count - 1
		WHERE promocode_id = ($1) AND activations_count <> -1`
	_, err := r.db.Exec(queryUsePromocode, promocodeID)
	return err
}

func (r *RepoDB) CreateOrder(o entity.Order, params []entity.OrderParameter) (entity.Order, error) {
	if o.Number == "" {
		o.Number = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = entity.StatusWaitingPayment
	}

	tx, err := r.db.Beginx()
	if err != nil {
		return o, err
	}
	defer rollback(tx)

	querySaveOrder := `INSERT INTO orders (number, user_id, promocode_id, straight, status, email, payment_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING order_id, created_at`
	if err = tx.QueryRow(querySaveOrder, o.Number, o.UserID, o.PromocodeID, o.Straight, o.Status, o.Email, o.PaymentType).
		Scan(&o.ID, &o.CreatedAt); err != nil {
		return o, err
	}

	querySaveParam := `INSERT INTO order_parameters (order_id, parameter_id, count) VALUES ($1, $2, $3)`
	for _, p := range params {
		if _, err = tx.Exec(querySaveParam, o.ID, p.ParameterID, p.Count); err != nil {
			return o, err
		}
	}

	if err = tx.Commit(); err != nil {
		return o, err
	}
	return o, nil
}

func (r *RepoDB) OrderByID(orderID int64, userID int64) (entity.Order, error) {
	var order entity.Order
	queryGetOrder := `SELECT order_id, number, user_id, promocode_id, straight, result_price, status, email, payment_type, created_at
		FROM orders WHERE order_id = ($1) AND user_id = ($2)`
	err := r.db.Get(&order, queryGetOrder, orderID, userID)
	return order, err
}

func (r *RepoDB) OrderPricedItems(orderID int64) ([]payment.PricedItem, error) {
	queryGetItems := `SELECT p.price, p.sale_price, p.has_sale, op.count
		FROM order_parameters op JOIN parameters p ON p.parameter_id = op.parameter_id
		WHERE op.order_id = ($1)`

	var rows []struct {
		Price     decimal.Decimal `db:"price"`
		SalePrice decimal.Decimal `db:"sale_price"`
		HasSale   bool            `db:"has_sale"`
		Count     int             `db:"count"`
	}
	if err := r.db.Select(&rows, queryGetItems, orderID); err != nil {
		return nil, err
	}

	items := make([]payment.PricedItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, payment.PricedItem{
			Price:     row.Price,
			SalePrice: row.SalePrice,
			HasSale:   row.HasSale,
			Count:     row.Count,
		})
	}
	return items, nil
}

func (r *RepoDB) OrderStatus(orderID int64) (string, error) {
	var status string
	queryGetStatus := `SELECT status FROM orders WHERE order_id = ($1)`
	err := r.db.Get(&status, queryGetStatus, orderID)
	return status, err
}

func (r *RepoDB) SetOrderPrice(orderID int64, price decimal.Decimal) error {
	querySetPrice := `UPDATE orders SET result_price = ($1) WHERE order_id = ($2)`
	_, err := r.db.Exec(querySetPrice, price, orderID)
	return err
}

// FinishOrder flips a pending order to finished and assigns stock to it in
// one transaction. Reports false when the order already left the pending
// state: the concurrent winner has done the work.
func (r *RepoDB) FinishOrder(orderID int64) (bool, error) {
	queryFinish := `UPDATE orders SET status = 'finished'
		WHERE order_id = ($1) AND status = 'waiting_payment' RETURNING order_id`
	queryGetParams := `SELECT op.parameter_id, op.count, p.give_type
		FROM order_parameters op JOIN parameters p ON p.parameter_id = op.parameter_id
		WHERE op.order_id = ($1)`
	queryAssignItems := `UPDATE product_items SET order_id = ($1)
		WHERE item_id IN (
			SELECT item_id FROM product_items
			WHERE parameter_id = ($2) AND order_id IS NULL
			ORDER BY item_id
			LIMIT ($3)
			FOR UPDATE SKIP LOCKED
		)`

	tx, err := r.db.Beginx()
	if err != nil {
		return false, err
	}
	defer rollback(tx)

	var id int64
	if err = tx.QueryRow(queryFinish, orderID).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	var params []struct {
		ParameterID int64  `db:"parameter_id"`
		Count       int    `db:"count"`
		GiveType    string `db:"give_type"`
	}
	if err = tx.Select(&params, queryGetParams, orderID); err != nil {
		return false, err
	}

	for _, p := range params {
		if p.GiveType == entity.GiveTypeHand {
			continue
		}
		if _, err = tx.Exec(queryAssignItems, orderID, p.ParameterID, p.Count); err != nil {
			return false, err
		}
	}

	if err = tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (r *RepoDB) CancelOrder(orderID int64) (bool, error) {
	queryCancel := `UPDATE orders SET status = 'canceled'
		WHERE order_id = ($1) AND status = 'waiting_payment'`
	res, err := r.db.Exec(queryCancel, orderID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CancelUserPendingOrders cancels every pending order of the user (a new
// checkout supersedes them) and returns the charge amounts of the canceled
// bank-transfer orders so their fingerprints can be freed.
func (r *RepoDB) CancelUserPendingOrders(userID int64) ([]decimal.Decimal, error) {
	queryCancel := `UPDATE orders SET status = 'canceled'
		WHERE user_id = ($1) AND status = 'waiting_payment'
		RETURNING result_price, payment_type`
	return r.cancelReturningAmounts(queryCancel, userID)
}

func (r *RepoDB) CancelStaleOrders(olderThan time.Time) ([]decimal.Decimal, error) {
	queryCancel := `UPDATE orders SET status = 'canceled'
		WHERE status = 'waiting_payment' AND created_at < ($1)
		RETURNING result_price, payment_type`
	return r.cancelReturningAmounts(queryCancel, olderThan)
}

func (r *RepoDB) cancelReturningAmounts(query string, arg interface{}) ([]decimal.Decimal, error) {
	rows, err := r.db.Query(query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var amounts []decimal.Decimal
	for rows.Next() {
		var price decimal.NullDecimal
		var paymentType string
		if err := rows.Scan(&price, &paymentType); err != nil {
			return nil, err
		}
		if paymentType == entity.PaymentTypeSBP && price.Valid {
			amounts = append(amounts, price.Decimal)
		}
	}
	return amounts, rows.Err()
}

func (r *RepoDB) OrderItems(orderID int64) ([]entity.OrderItem, error) {
	queryGetParams := `SELECT p.parameter_id, p.title, p.give_type, op.count
		FROM order_parameters op JOIN parameters p ON p.parameter_id = op.parameter_id
		WHERE op.order_id = ($1)`
	queryGetValues := `SELECT value FROM product_items WHERE order_id = ($1) AND parameter_id = ($2)`

	var params []struct {
		ParameterID int64  `db:"parameter_id"`
		Title       string `db:"title"`
		GiveType    string `db:"give_type"`
		Count       int    `db:"count"`
	}
	if err := r.db.Select(&params, queryGetParams, orderID); err != nil {
		return nil, err
	}

	items := make([]entity.OrderItem, 0, len(params))
	for _, p := range params {
		item := entity.OrderItem{
			ParameterID: p.ParameterID,
			Title:       p.Title,
			GiveType:    p.GiveType,
			Count:       p.Count,
			Items:       []string{},
		}
		if p.GiveType != entity.GiveTypeHand {
			if err := r.db.Select(&item.Items, queryGetValues, orderID, p.ParameterID); err != nil {
				return nil, err
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *RepoDB) CreateReplenish(rep entity.Replenish) (entity.Replenish, error) {
	if rep.Number == "" {
		rep.Number = uuid.NewString()
	}
	if rep.Status == "" {
		rep.Status = entity.StatusWaitingPayment
	}

	querySaveReplenish := `INSERT INTO replenishes (number, user_id, result_price, payment_type, status)
		VALUES ($1, $2, $3, $4, $5) RETURNING replenish_id, created_at`
	err := r.db.QueryRow(querySaveReplenish, rep.Number, rep.UserID, rep.ResultPrice, rep.PaymentType, rep.Status).
		Scan(&rep.ID, &rep.CreatedAt)
	return rep, err
}

func (r *RepoDB) ReplenishByNumber(number string, userID int64) (entity.Replenish, error) {
	var replenish entity.Replenish
	queryGetReplenish := `SELECT replenish_id, number, user_id, result_price, payment_type, status, created_at, payed_at
		FROM replenishes WHERE number = ($1) AND user_id = ($2)`
	err := r.db.Get(&replenish, queryGetReplenish, number, userID)
	return replenish, err
}

// FinishReplenish flips a pending replenish to finished and credits the
// user's balance in one transaction, so a failed credit rolls the status
// back and the replenish stays retryable. Reports false when the replenish
// already left the pending state.
func (r *RepoDB) FinishReplenish(replenishID int64, userID int64, amount decimal.Decimal) (bool, error) {
	queryFinish := `UPDATE replenishes SET status = 'finished', payed_at = now()
		WHERE replenish_id = ($1) AND status = 'waiting_payment' RETURNING replenish_id`
	queryCredit := `UPDATE users SET balance = balance + ($1) WHERE user_id = ($2)`

	tx, err := r.db.Beginx()
	if err != nil {
		return false, err
	}
	defer rollback(tx)

	var id int64
	if err = tx.QueryRow(queryFinish, replenishID).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	if _, err = tx.Exec(queryCredit, amount, userID); err != nil {
		return false, err
	}

	if err = tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (r *RepoDB) CancelStaleReplenishes(olderThan time.Time) ([]decimal.Decimal, error) {
	queryCancel := `UPDATE replenishes SET status = 'canceled'
		WHERE status = 'waiting_payment' AND created_at < ($1)
		RETURNING result_price, payment_type`
	return r.cancelReturningAmounts(queryCancel, olderThan)
}

func (r *RepoDB) FinishedReplenishes(userID int64) ([]entity.Replenish, error) {
	var replenishes []entity.Replenish
	queryGetReplenishes := `SELECT replenish_id, number, user_id, result_price, payment_type, status, created_at, payed_at
		FROM replenishes WHERE user_id = ($1) AND status = 'finished'`
	err := r.db.Select(&replenishes, queryGetReplenishes, userID)
	return replenishes, err
}

// PurchasedOrderID returns a finished order of the user containing the
// product, sql.ErrNoRows when the user never bought it.
func (r *RepoDB) PurchasedOrderID(userID int64, productID int64) (int64, error) {
	var orderID int64
	queryGetOrder := `SELECT o.order_id
		FROM orders o
		JOIN order_parameters op ON op.order_id = o.order_id
		JOIN parameters p ON p.parameter_id = op.parameter_id
		WHERE o.user_id = ($1) AND p.product_id = ($2) AND o.status = 'finished'
		LIMIT 1`
	err := r.db.Get(&orderID, queryGetOrder, userID, productID)
	return orderID, err
}

func (r *RepoDB) CreateReview(rev entity.Review) (int64, error) {
	var reviewID int64
	querySaveReview := `INSERT INTO reviews (user_id, product_id, order_id, rate, text)
		VALUES ($1, $2, $3, $4, $5) RETURNING review_id`
	err := r.db.Get(&reviewID, querySaveReview, rev.UserID, rev.ProductID, rev.OrderID, rev.Rate, rev.Text)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) {
			return 0, ErrReviewExists
		}
		return 0, err
	}
	return reviewID, nil
}

func (r *RepoDB) ProductReviews(productID int64) ([]entity.Review, error) {
	var reviews []entity.Review
	queryGetReviews := `SELECT review_id, user_id, product_id, order_id, rate, text, created_at
		FROM reviews WHERE product_id = ($1)`
	err := r.db.Select(&reviews, queryGetReviews, productID)
	return reviews, err
}

func (r *RepoDB) Close() {
	r.db.Close()
}

func rollback(tx *sqlx.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		logger.Logger.Err(err).Msg("")
	}
}
