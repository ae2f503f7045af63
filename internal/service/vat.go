package service

import (
	"sort"
	"strconv"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tillpoint/api/internal/database"
	"github.com/tillpoint/api/internal/enum"
)

// VatRate is a resolved rate with its provenance.
type VatRate struct {
	Bps    int32
	Source string
}

// ResolveVatRate picks the applicable rate for a line: a menu-item
// override wins over the product default, which wins over the tenant
// default. No rate anywhere is a configuration error.
func ResolveVatRate(menuItemVat, productVat pgtype.Int4, tenant database.Tenant) (VatRate, error) {
	if menuItemVat.Valid {
		return VatRate{Bps: menuItemVat.Int32, Source: enum.VatSourceMenuItem}, nil
	}
	if productVat.Valid {
		return VatRate{Bps: productVat.Int32, Source: enum.VatSourceProduct}, nil
	}
	if tenant.DefaultVatBps.Valid {
		return VatRate{Bps: tenant.DefaultVatBps.Int32, Source: enum.VatSourceTenant}, nil
	}
	return VatRate{}, ErrTenantVatMissing
}

// VatBucket is the per-rate slice of an order's totals. All prices are
// VAT-inclusive, so net is backed out of gross.
type VatBucket struct {
	GrossCents int64 `json:"gross_cents"`
	NetCents   int64 `json:"net_cents"`
	VatCents   int64 `json:"vat_cents"`
}

// OrderTotals is the result of a recalculation.
type OrderTotals struct {
	SubtotalExclVatCents int64
	TotalInclVatCents    int64
	Breakdown            map[string]VatBucket
}

var tenThousand = decimal.NewFromInt(10000)

// ComputeTotals buckets lines by VAT rate and backs net out of gross:
// net = round(gross * 10000 / (10000 + bps)), vat = gross - net.
// Rounding happens once per bucket, not per line. That can diverge by
// a cent from per-line rounding and is the contract receipts rely on.
func ComputeTotals(lines []database.OrderLine) OrderTotals {
	totals := OrderTotals{Breakdown: make(map[string]VatBucket)}

	gross := make(map[int32]int64)
	for _, l := range lines {
		gross[l.VatRateBps] += int64(l.Qty) * l.PriceCents
	}

	rates := make([]int32, 0, len(gross))
	for bps := range gross {
		rates = append(rates, bps)
	}
	sort.Slice(rates, func(i, j int) bool { return rates[i] < rates[j] })

	for _, bps := range rates {
		g := gross[bps]
		net := decimal.NewFromInt(g).
			Mul(tenThousand).
			Div(tenThousand.Add(decimal.NewFromInt(int64(bps)))).
			Round(0).
			IntPart()
		bucket := VatBucket{
			GrossCents: g,
			NetCents:   net,
			VatCents:   g - net,
		}
		totals.Breakdown[strconv.FormatInt(int64(bps), 10)] = bucket
		totals.SubtotalExclVatCents += bucket.NetCents
		totals.TotalInclVatCents += bucket.GrossCents
	}

	return totals
}
