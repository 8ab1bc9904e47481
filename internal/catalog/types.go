package catalog

import "github.com/shopspring/decimal"

const (
	// DocKey is the state-table key of the catalog document.
	DocKey = "catalog"
	// SchemaName names the catalog document schema.
	SchemaName = "catalog"
	// DefaultHex is the swatch colour used when a product is saved without one.
	DefaultHex = "#FFC0CB"
)

// Product is a purchasable item.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Shade       string          `json:"shade"`
	Description string          `json:"description"`
	Image       string          `json:"image"` // URL or data: URI
	Hex         string          `json:"hex"`
}

// document is the persisted shape of the catalog.
type document struct {
	Products []Product `json:"products"`
}
