// Package seed loads the demo directory and catalog.
package seed

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/walletworks/concierge/internal/model"
	"github.com/walletworks/concierge/internal/store"
)

// ShopPhone identifies the merchant account that receives purchase payments.
const ShopPhone = "+19999999999"

type seedUser struct {
	name    string
	phone   string
	email   string
	balance string
}

var demoUsers = []seedUser{
	{"Alice", "+10000000001", "alice@mail.com", "15000"},
	{"Bob", "+10000000002", "bob@mail.com", "8000"},
	{"Carol", "+10000000003", "carol@mail.com", "12000"},
	{"User4", "+10000000004", "user4@example.com", "1400"},
	{"User5", "+10000000005", "user5@example.com", "1500"},
}

type seedProduct struct {
	title       string
	description string
	category    string
	brandID     string
	brandName   string
	price       string
	rating      float64
	stock       int
}

var demoCatalog = []seedProduct{
	{"TechPro Wireless Pro Mouse", "Ergonomic wireless mouse", "mice", "techpro", "TechPro", "49.99", 4.5, 40},
	{"GadgetX Wireless Mouse", "Compact wireless mouse", "mice", "gadgetx", "GadgetX", "39.99", 4.4, 55},
	{"Mechanical Keyboard", "RGB mechanical keyboard", "keyboards", "techpro", "TechPro", "89.99", 4.8, 30},
	{"USB-C Hub", "7-in-1 USB-C hub", "accessories", "gadgetx", "GadgetX", "45.99", 4.3, 80},
	{"USB-C Cable", "Braided 2m USB-C cable", "accessories", "gadgetx", "GadgetX", "8.00", 4.1, 200},
	{"Noise Cancelling Headphones", "Over-ear noise cancelling headphones", "audio", "techpro", "TechPro", "120.00", 4.6, 25},
	{"4K Monitor", "27-inch 4K monitor", "displays", "techpro", "TechPro", "349.99", 4.7, 15},
	{"Laptop Stand", "Adjustable aluminum stand", "accessories", "gadgetx", "GadgetX", "39.99", 4.6, 60},
	{"Webcam", "1080p webcam with privacy shutter", "accessories", "techpro", "TechPro", "50.00", 4.2, 45},
	{"TechPro UltraBook Pro", "Premium laptop", "laptops", "techpro", "TechPro", "1299.99", 4.8, 10},
	{"GadgetX Student Laptop", "Affordable laptop", "laptops", "gadgetx", "GadgetX", "499.99", 4.3, 20},
}

// Load seeds the demo users, the shop account and the catalog. It is
// idempotent: a store that already has the shop account is left untouched.
func Load(ctx context.Context, st store.Store, log zerolog.Logger) error {
	if _, err := st.Users().GetByPhone(ctx, ShopPhone); err == nil {
		log.Info().Msg("demo data already present, skipping seed")
		return nil
	}

	for _, u := range demoUsers {
		balance, err := decimal.NewFromString(u.balance)
		if err != nil {
			return fmt.Errorf("seed user %s: %w", u.name, err)
		}
		if _, err := st.Users().Create(ctx, &model.User{
			Name: u.name, Phone: u.phone, Email: u.email, Balance: balance,
		}); err != nil {
			return fmt.Errorf("seed user %s: %w", u.name, err)
		}
	}

	if _, err := st.Users().Create(ctx, &model.User{
		Name: "Shop", Phone: ShopPhone, Email: "shop@example.com", Balance: decimal.Zero,
	}); err != nil {
		return fmt.Errorf("seed shop account: %w", err)
	}

	for _, p := range demoCatalog {
		price, err := decimal.NewFromString(p.price)
		if err != nil {
			return fmt.Errorf("seed product %s: %w", p.title, err)
		}
		if _, err := st.Products().Create(ctx, &model.Product{
			Title:       p.title,
			Description: p.description,
			Category:    p.category,
			BrandID:     p.brandID,
			BrandName:   p.brandName,
			Price:       price,
			Rating:      p.rating,
			Stock:       p.stock,
		}); err != nil {
			return fmt.Errorf("seed product %s: %w", p.title, err)
		}
	}

	log.Info().
		Int("users", len(demoUsers)+1).
		Int("products", len(demoCatalog)).
		Msg("demo data seeded")
	return nil
}
