package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Saver persists a whole entity, inserting it when absent. Product savers
// must leave the stock of an existing row untouched.
type Saver[T any] interface {
	Save(ctx context.Context, v T) error
}

type NewProduct struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	IsAvailable bool            `json:"is_available"`
}

type ProductPatch struct {
	Name        *string          `json:"name,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	IsAvailable *bool            `json:"is_available,omitempty"`
}

type NewUser struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type UserPatch struct {
	Email *string `json:"email,omitempty"`
	Name  *string `json:"name,omitempty"`
}

// Catalog holds the plain user and product operations. All mutations of an
// existing entity go through its lookup so the cached copy is dropped.
type Catalog struct {
	Users        EntityLookup[User]
	Products     EntityLookup[Product]
	UserStore    Saver[User]
	ProductStore Saver[Product]
	Ledger       *Ledger
	Now          func() time.Time
}

func (c *Catalog) CreateUser(ctx context.Context, in NewUser) (User, error) {
	if strings.TrimSpace(in.Email) == "" {
		return User{}, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	now := c.now()
	u := User{ID: uuid.NewString(), Email: in.Email, Name: in.Name, CreatedAt: now, UpdatedAt: now}
	if err := c.UserStore.Save(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

func (c *Catalog) GetUser(ctx context.Context, id string) (User, error) {
	return c.Users.FindByID(ctx, id)
}

func (c *Catalog) UpdateUser(ctx context.Context, id string, p UserPatch) (User, error) {
	return c.Users.Update(ctx, id, func(u *User) error {
		if p.Email != nil {
			if strings.TrimSpace(*p.Email) == "" {
				return fmt.Errorf("%w: email must not be empty", ErrInvalidInput)
			}
			u.Email = *p.Email
		}
		if p.Name != nil {
			u.Name = *p.Name
		}
		u.UpdatedAt = c.now()
		return nil
	})
}

// DeleteUser soft-deletes; the user resolves as not found afterwards.
func (c *Catalog) DeleteUser(ctx context.Context, id string) error {
	_, err := c.Users.Update(ctx, id, func(u *User) error {
		now := c.now()
		u.DeletedAt = &now
		u.UpdatedAt = now
		return nil
	})
	return err
}

func (c *Catalog) CreateProduct(ctx context.Context, in NewProduct) (Product, error) {
	if strings.TrimSpace(in.Name) == "" {
		return Product{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if in.Price.IsNegative() {
		return Product{}, fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	if in.Stock < 0 {
		return Product{}, fmt.Errorf("%w: stock must not be negative", ErrInvalidInput)
	}
	now := c.now()
	p := Product{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Price:       RoundPrice(in.Price),
		Stock:       in.Stock,
		IsAvailable: in.IsAvailable,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := c.ProductStore.Save(ctx, p); err != nil {
		return Product{}, err
	}
	return p, nil
}

func (c *Catalog) GetProduct(ctx context.Context, id string) (Product, error) {
	return c.Products.FindByID(ctx, id)
}

// UpdateProduct changes descriptive fields. Stock is not patchable here.
func (c *Catalog) UpdateProduct(ctx context.Context, id string, p ProductPatch) (Product, error) {
	return c.Products.Update(ctx, id, func(pr *Product) error {
		if p.Name != nil {
			pr.Name = *p.Name
		}
		if p.Price != nil {
			if p.Price.IsNegative() {
				return fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
			}
			pr.Price = RoundPrice(*p.Price)
		}
		if p.IsAvailable != nil {
			pr.IsAvailable = *p.IsAvailable
		}
		pr.UpdatedAt = c.now()
		return nil
	})
}

// AdjustStock is the direct restock/correction path into the ledger.
func (c *Catalog) AdjustStock(ctx context.Context, productID string, delta int) (int, error) {
	return c.Ledger.Adjust(ctx, productID, delta)
}

func (c *Catalog) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}
