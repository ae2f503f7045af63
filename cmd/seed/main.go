// Seed loads a demo tenant with a small menu so the API can be
// exercised end to end without a backoffice. Safe to re-run: it bails
// out if the demo tenant already exists.
package main

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/tillpoint/api/internal/config"
	"github.com/tillpoint/api/internal/database"
	"github.com/tillpoint/api/internal/logging"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	logging.Init()
	cfg := config.Load()

	ctx := context.Background()

	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}

	conn, err := pgx.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to database")
	}
	defer conn.Close(ctx)

	var existing int
	if err := conn.QueryRow(ctx, `SELECT count(*) FROM tenants WHERE name = 'Demo Cafe'`).Scan(&existing); err != nil {
		log.Fatal().Err(err).Msg("check existing seed")
	}
	if existing > 0 {
		log.Info().Msg("demo tenant already seeded, nothing to do")
		return
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var tenantID uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO tenants (name, receipt_prefix, default_vat_bps)
		VALUES ('Demo Cafe', 'DEMO', 2100)
		RETURNING id`).Scan(&tenantID)
	if err != nil {
		log.Fatal().Err(err).Msg("insert tenant")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("demo1234"), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal().Err(err).Msg("hash password")
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO users (tenant_id, email, password_hash, name, role)
		VALUES ($1, 'owner@demo.cafe', $2, 'Demo Owner', 'OWNER'),
		       ($1, 'cashier@demo.cafe', $2, 'Demo Cashier', 'CASHIER')`,
		tenantID, string(hash))
	if err != nil {
		log.Fatal().Err(err).Msg("insert users")
	}

	// Products: an espresso with size variants, a burger with a
	// mandatory doneness group, and a reduced-rate bottled water.
	var espressoID, burgerID, waterID uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO products (tenant_id, title, price_cents, vat_bps)
		VALUES ($1, 'Espresso', 250, NULL)
		RETURNING id`, tenantID).Scan(&espressoID)
	if err != nil {
		log.Fatal().Err(err).Msg("insert espresso")
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO products (tenant_id, title, price_cents, vat_bps)
		VALUES ($1, 'Burger', 1250, NULL)
		RETURNING id`, tenantID).Scan(&burgerID)
	if err != nil {
		log.Fatal().Err(err).Msg("insert burger")
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO products (tenant_id, title, price_cents, vat_bps)
		VALUES ($1, 'Bottled Water', 375, 900)
		RETURNING id`, tenantID).Scan(&waterID)
	if err != nil {
		log.Fatal().Err(err).Msg("insert water")
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO variants (product_id, name, delta_cents, position)
		VALUES ($1, 'Single', 0, 1),
		       ($1, 'Double', 80, 2)`, espressoID)
	if err != nil {
		log.Fatal().Err(err).Msg("insert variants")
	}

	// Menu item with a VAT override: espresso served in-house gets the
	// reduced hospitality rate.
	_, err = tx.Exec(ctx, `
		INSERT INTO menu_items (tenant_id, product_id, vat_bps, price_cents)
		VALUES ($1, $2, 900, NULL)`, tenantID, espressoID)
	if err != nil {
		log.Fatal().Err(err).Msg("insert menu item")
	}

	var donenessID, extrasID uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO modifier_groups (tenant_id, product_id, name, min_select, max_select, position)
		VALUES ($1, $2, 'Doneness', 1, 1, 1)
		RETURNING id`, tenantID, burgerID).Scan(&donenessID)
	if err != nil {
		log.Fatal().Err(err).Msg("insert doneness group")
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO modifier_groups (tenant_id, product_id, name, min_select, max_select, position)
		VALUES ($1, $2, 'Extras', 0, NULL, 2)
		RETURNING id`, tenantID, burgerID).Scan(&extrasID)
	if err != nil {
		log.Fatal().Err(err).Msg("insert extras group")
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO modifier_options (group_id, name, delta_cents, position)
		VALUES ($1, 'Rare', 0, 1),
		       ($1, 'Medium', 0, 2),
		       ($1, 'Well done', 0, 3),
		       ($2, 'Bacon', 150, 1),
		       ($2, 'Cheese', 100, 2),
		       ($2, 'Fried egg', 125, 3)`, donenessID, extrasID)
	if err != nil {
		log.Fatal().Err(err).Msg("insert modifier options")
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatal().Err(err).Msg("commit tx")
	}

	log.Info().
		Str("tenant_id", tenantID.String()).
		Str("owner", "owner@demo.cafe / demo1234").
		Msg("demo tenant seeded")
}
