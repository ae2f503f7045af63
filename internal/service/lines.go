package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tillpoint/api/internal/database"
)

// CatalogStore defines the catalog reads needed to price a line.
// Satisfied by *database.Queries (and its WithTx variant).
type CatalogStore interface {
	GetTenant(ctx context.Context, id uuid.UUID) (database.Tenant, error)
	GetProduct(ctx context.Context, arg database.GetProductParams) (database.Product, error)
	GetVariant(ctx context.Context, id uuid.UUID) (database.Variant, error)
	GetMenuItem(ctx context.Context, arg database.GetMenuItemParams) (database.MenuItem, error)
	ListModifierGroupsByProduct(ctx context.Context, productID uuid.UUID) ([]database.ModifierGroup, error)
	ListModifierGroupsByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]database.ModifierGroup, error)
	ListModifierOptionsByGroup(ctx context.Context, groupID uuid.UUID) ([]database.ModifierOption, error)
}

// ResolvedGroup is a modifier group with its options, in display order.
type ResolvedGroup struct {
	Group   database.ModifierGroup
	Options []database.ModifierOption
}

// resolveModifierGroups returns the groups applicable to a line.
// Menu-item-level groups override product-level attachments: when the
// menu item has any groups of its own, the product's are ignored.
func resolveModifierGroups(ctx context.Context, store CatalogStore, productID uuid.UUID, menuItemID *uuid.UUID) ([]ResolvedGroup, error) {
	var groups []database.ModifierGroup
	var err error

	if menuItemID != nil {
		groups, err = store.ListModifierGroupsByMenuItem(ctx, *menuItemID)
		if err != nil {
			return nil, fmt.Errorf("list menu item modifier groups: %w", err)
		}
	}
	if len(groups) == 0 {
		groups, err = store.ListModifierGroupsByProduct(ctx, productID)
		if err != nil {
			return nil, fmt.Errorf("list product modifier groups: %w", err)
		}
	}

	resolved := make([]ResolvedGroup, 0, len(groups))
	for _, g := range groups {
		options, err := store.ListModifierOptionsByGroup(ctx, g.ID)
		if err != nil {
			return nil, fmt.Errorf("list modifier options: %w", err)
		}
		resolved = append(resolved, ResolvedGroup{Group: g, Options: options})
	}
	return resolved, nil
}

// LineModifierGroup is the tagged snapshot serialized into a line at
// creation time. It is never re-derived from live catalog state.
type LineModifierGroup struct {
	GroupID  uuid.UUID            `json:"group_id"`
	Name     string               `json:"name"`
	Min      int32                `json:"min"`
	Max      *int32               `json:"max"`
	Selected []LineModifierOption `json:"selected"`
}

type LineModifierOption struct {
	OptionID   uuid.UUID `json:"option_id"`
	Name       string    `json:"name"`
	DeltaCents int64     `json:"delta_cents"`
}

// lineSignature is the merge key: sorted, deduplicated selected option
// ids joined by a delimiter. Pricing treats the selection as a set, so
// the signature must too, or a request repeating an id would never
// merge with its set-identical twin.
func lineSignature(selected []uuid.UUID) string {
	ids := make([]string, 0, len(selected))
	seen := make(map[uuid.UUID]bool, len(selected))
	for _, id := range selected {
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id.String())
	}
	sort.Strings(ids)
	return strings.Join(ids, "+")
}

// resolvedLine is a fully priced line ready to merge or insert.
type resolvedLine struct {
	Title          string
	UnitPriceCents int64
	VatRateBps     int32
	VatSource      string
	Signature      string
	Modifiers      []byte
}

// buildLine resolves price, VAT and modifiers into a frozen line.
// Selection rules: for each group the chosen subset is the intersection
// of selectedIDs with the group's options; min/max bounds are enforced
// per group; an id matching no group at all is rejected.
func buildLine(product database.Product, variant *database.Variant, menuItem *database.MenuItem,
	tenant database.Tenant, groups []ResolvedGroup, selectedIDs []uuid.UUID) (resolvedLine, error) {

	menuItemVat := pgtype.Int4{}
	basePrice := product.PriceCents
	if menuItem != nil {
		menuItemVat = menuItem.VatBps
		if menuItem.PriceCents.Valid {
			basePrice = menuItem.PriceCents.Int64
		}
	}

	rate, err := ResolveVatRate(menuItemVat, product.VatBps, tenant)
	if err != nil {
		return resolvedLine{}, err
	}

	title := product.Title
	if variant != nil {
		basePrice += variant.DeltaCents
		title = fmt.Sprintf("%s (%s)", product.Title, variant.Name)
	}

	selected := make(map[uuid.UUID]bool, len(selectedIDs))
	for _, id := range selectedIDs {
		selected[id] = true
	}

	unitPrice := basePrice
	snapshot := make([]LineModifierGroup, 0, len(groups))
	matched := 0

	for _, rg := range groups {
		group := LineModifierGroup{
			GroupID:  rg.Group.ID,
			Name:     rg.Group.Name,
			Min:      rg.Group.MinSelect,
			Selected: []LineModifierOption{},
		}
		if rg.Group.MaxSelect.Valid {
			max := rg.Group.MaxSelect.Int32
			group.Max = &max
		}

		for _, opt := range rg.Options {
			if !selected[opt.ID] {
				continue
			}
			matched++
			unitPrice += opt.DeltaCents
			group.Selected = append(group.Selected, LineModifierOption{
				OptionID:   opt.ID,
				Name:       opt.Name,
				DeltaCents: opt.DeltaCents,
			})
		}

		chosen := len(group.Selected)
		if chosen < int(rg.Group.MinSelect) {
			return resolvedLine{}, &ModifierSelectionError{
				GroupID: rg.Group.ID,
				Group:   rg.Group.Name,
				Chosen:  chosen,
				Min:     int(rg.Group.MinSelect),
				Max:     maxOrMinusOne(rg.Group.MaxSelect),
				Bound:   "min",
			}
		}
		if rg.Group.MaxSelect.Valid && chosen > int(rg.Group.MaxSelect.Int32) {
			return resolvedLine{}, &ModifierSelectionError{
				GroupID: rg.Group.ID,
				Group:   rg.Group.Name,
				Chosen:  chosen,
				Min:     int(rg.Group.MinSelect),
				Max:     int(rg.Group.MaxSelect.Int32),
				Bound:   "max",
			}
		}

		snapshot = append(snapshot, group)
	}

	if matched != len(selected) {
		return resolvedLine{}, ErrUnknownOption
	}

	modifiers, err := json.Marshal(snapshot)
	if err != nil {
		return resolvedLine{}, fmt.Errorf("marshal modifier snapshot: %w", err)
	}

	return resolvedLine{
		Title:          title,
		UnitPriceCents: unitPrice,
		VatRateBps:     rate.Bps,
		VatSource:      rate.Source,
		Signature:      lineSignature(selectedIDs),
		Modifiers:      modifiers,
	}, nil
}

func maxOrMinusOne(n pgtype.Int4) int {
	if n.Valid {
		return int(n.Int32)
	}
	return -1
}

// findMergeableLine returns the existing line the new one merges into,
// or nil. Match is on title plus signature, so identical products with
// different modifier selections stay separate lines.
func findMergeableLine(lines []database.OrderLine, title, signature string) *database.OrderLine {
	for i := range lines {
		if lines[i].Title == title && lines[i].Signature == signature {
			return &lines[i]
		}
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
