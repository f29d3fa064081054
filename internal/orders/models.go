package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceScale is the number of decimal places prices are kept at.
const PriceScale = 2

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"` // only the Ledger writes this
	IsAvailable bool            `json:"is_available"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type ShippingInfo struct {
	Recipient  string `json:"recipient"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type Order struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	ProductID  string          `json:"product_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`  // snapshot at creation
	TotalPrice decimal.Decimal `json:"total_price"` // UnitPrice * Quantity, never recomputed
	Status     Status          `json:"status"`      // lihat status.go
	Shipping   ShippingInfo    `json:"shipping"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// StockChange is the outcome of a single ledger write.
type StockChange struct {
	ProductID string
	Previous  int
	Current   int
	Clamped   bool
}

// RoundPrice normalises a price to PriceScale places.
func RoundPrice(d decimal.Decimal) decimal.Decimal {
	return d.Round(PriceScale)
}
