// Package catalog is the administrator-editable product list.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/imrishuroy/glaze-storefront/internal/apperr"
	"github.com/imrishuroy/glaze-storefront/internal/docstore"
)

// Schema is the docstore schema of the catalog document.
var Schema = docstore.Schema{Name: SchemaName, Version: 1}

// Store keeps the catalog document in the state table.
type Store struct {
	docs    *docstore.Store
	nowFunc func() time.Time
}

// NewStore creates a new catalog Store.
func NewStore(docs *docstore.Store) *Store {
	return &Store{docs: docs, nowFunc: time.Now}
}

func seedDoc() document { return document{Products: Seed()} }

// List returns every product in catalog order.
func (s *Store) List(ctx context.Context) ([]Product, error) {
	doc, err := docstore.Read(ctx, s.docs, DocKey, SchemaName, seedDoc)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return doc.Products, nil
}

// Get returns the product with the given id.
func (s *Store) Get(ctx context.Context, id string) (Product, error) {
	products, err := s.List(ctx)
	if err != nil {
		return Product{}, err
	}
	if i := indexOf(products, id); i >= 0 {
		return products[i], nil
	}
	return Product{}, apperr.NotFound("product_not_found", "product not found")
}

// Create appends p to the catalog. An empty id becomes p<unix-millis>.
func (s *Store) Create(ctx context.Context, p Product) (Product, error) {
	if p.ID == "" {
		p.ID = fmt.Sprintf("p%d", s.nowFunc().UnixMilli())
	}
	if err := normalize(&p); err != nil {
		return Product{}, err
	}
	_, err := docstore.Update(ctx, s.docs, DocKey, SchemaName, seedDoc, func(d *document) error {
		if indexOf(d.Products, p.ID) >= 0 {
			return apperr.Conflict("product_exists", "a product with this id already exists")
		}
		d.Products = append(d.Products, p)
		return nil
	})
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

// Update replaces the product with p.ID.
func (s *Store) Update(ctx context.Context, p Product) (Product, error) {
	if err := normalize(&p); err != nil {
		return Product{}, err
	}
	_, err := docstore.Update(ctx, s.docs, DocKey, SchemaName, seedDoc, func(d *document) error {
		i := indexOf(d.Products, p.ID)
		if i < 0 {
			return apperr.NotFound("product_not_found", "product not found")
		}
		d.Products[i] = p
		return nil
	})
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

// Delete removes a product. Orders and reviews that reference it are untouched.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := docstore.Update(ctx, s.docs, DocKey, SchemaName, seedDoc, func(d *document) error {
		i := indexOf(d.Products, id)
		if i < 0 {
			return apperr.NotFound("product_not_found", "product not found")
		}
		d.Products = append(d.Products[:i], d.Products[i+1:]...)
		return nil
	})
	return err
}

// Replace overwrites the whole catalog, as a backup restore does.
func (s *Store) Replace(ctx context.Context, products []Product) error {
	for i := range products {
		if err := normalize(&products[i]); err != nil {
			return err
		}
	}
	_, err := docstore.Update(ctx, s.docs, DocKey, SchemaName, seedDoc, func(d *document) error {
		d.Products = products
		return nil
	})
	return err
}

func normalize(p *Product) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.ID == "" || p.Name == "" {
		return apperr.Validation("product_invalid", "product id and name are required")
	}
	if p.Price.IsNegative() {
		return apperr.Validation("product_invalid", "price must not be negative")
	}
	if p.Hex == "" {
		p.Hex = DefaultHex
	}
	return nil
}

func indexOf(products []Product, id string) int {
	for i, p := range products {
		if p.ID == id {
			return i
		}
	}
	return -1
}
