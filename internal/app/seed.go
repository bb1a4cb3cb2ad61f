package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"retailpos/internal/config"
	"retailpos/internal/core/apperror"
	"retailpos/internal/core/security"
	"retailpos/internal/core/types"
	"retailpos/internal/domain/catalog"
	"retailpos/internal/domain/inventory"
	"retailpos/pkg/logger"
)

// Demo tenant credentials.
const (
	DemoAdminEmail    = "demo-owner@retailpos.local"
	DemoAdminPassword = "demo-owner-pass"
)

type demoProduct struct {
	name     string
	category string
	code     string
	discount string
	variants []string
	cost     string
	price    string
	quantity int64
}

var demoProducts = []demoProduct{
	{"Cotton T-Shirt", "apparel", "TS-001", "10", []string{"S", "M", "L"}, "4.50", "12.00", 25},
	{"Ceramic Mug", "homeware", "MG-001", "0", []string{"White", "Black"}, "2.10", "6.50", 40},
	{"Notebook A5", "stationery", "NB-005", "5", []string{"Lined"}, "0.90", "3.25", 8},
}

// Seed creates the configured super admin and, when enabled, a demo tenant.
// Running it twice is harmless.
func Seed(ctx context.Context, services *Services, cfg config.Config) error {
	if cfg.SuperAdminEmail != "" {
		user, created, err := services.Auth.EnsureSuperAdmin(ctx, cfg.SuperAdminEmail, cfg.SuperAdminPassword)
		if err != nil {
			return fmt.Errorf("seed super admin: %w", err)
		}
		logger.Info(ctx, "super admin ready", "email", user.Email, "created", created)
	}
	if cfg.SeedDemo {
		return SeedDemo(ctx, services)
	}
	return nil
}

// SeedDemo signs up a demo tenant with one location and stocked products.
func SeedDemo(ctx context.Context, services *Services) error {
	tenant, adminID, err := services.Catalog.Signup(ctx, catalog.SignupRequest{
		TenantName:    "Demo Store",
		AdminEmail:    DemoAdminEmail,
		AdminPassword: DemoAdminPassword,
		AdminName:     "Demo Owner",
	})
	if err != nil {
		if apperror.HasCode(err, apperror.CodeDuplicate) {
			logger.Info(ctx, "demo tenant already present")
			return nil
		}
		return fmt.Errorf("demo signup: %w", err)
	}

	ctx = security.WithScope(ctx, &security.Scope{
		UserID:   adminID,
		Role:     security.RoleStoreAdmin,
		TenantID: tenant.ID,
	})

	loc, err := services.Catalog.CreateLocation(ctx, catalog.LocationRequest{
		Name:    "Main Street",
		Address: "1 Main Street",
	})
	if err != nil {
		return fmt.Errorf("demo location: %w", err)
	}

	for _, dp := range demoProducts {
		p, err := services.Catalog.CreateProduct(ctx, catalog.ProductRequest{
			Name:        dp.name,
			Category:    dp.category,
			ProductCode: dp.code,
			Discount:    decimal.RequireFromString(dp.discount),
			Variants:    dp.variants,
		})
		if err != nil {
			return fmt.Errorf("demo product %s: %w", dp.name, err)
		}
		for _, v := range p.Variants {
			_, err := services.Inventory.StockIn(ctx, inventory.StockInRequest{
				LocationID:   loc.ID,
				VariantID:    v.ID,
				Quantity:     dp.quantity,
				CostPrice:    types.MustMoney(dp.cost),
				SellingPrice: types.MustMoney(dp.price),
				Supplier:     "Demo Wholesale",
			})
			if err != nil {
				return fmt.Errorf("demo stock %s/%s: %w", dp.name, v.VariantName, err)
			}
		}
	}

	logger.Info(ctx, "demo tenant seeded",
		"tenant_id", tenant.ID,
		"location_id", loc.ID,
		"products", len(demoProducts),
	)
	return nil
}
