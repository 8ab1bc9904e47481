package storefront

import (
	"context"

	"github.com/imrishuroy/glaze-storefront/internal/backup"
	"github.com/imrishuroy/glaze-storefront/internal/catalog"
	"github.com/imrishuroy/glaze-storefront/internal/consultant"
	"github.com/imrishuroy/glaze-storefront/internal/media"
	"github.com/imrishuroy/glaze-storefront/internal/orders"
	"github.com/imrishuroy/glaze-storefront/internal/settings"
	"github.com/imrishuroy/glaze-storefront/internal/validation"
)

// Admin commands assume the caller already passed RequireAdmin.

func (s *Shell) AllOrders(ctx context.Context) ([]orders.Order, error) {
	return s.Orders.List(ctx)
}

func (s *Shell) SetOrderStatus(ctx context.Context, id string, req validation.StatusRequest) (*orders.Order, error) {
	if err := validation.Check(req); err != nil {
		return nil, err
	}
	o, err := orders.SetStatus(ctx, s.Orders, id, orders.Status(req.Status))
	if err != nil {
		return nil, err
	}
	s.Logger.Info("order status changed", "order_id", id, "status", req.Status)
	return o, nil
}

func productFrom(req validation.ProductRequest) catalog.Product {
	return catalog.Product{
		ID:          req.ID,
		Name:        req.Name,
		Price:       req.Price,
		Shade:       req.Shade,
		Description: req.Description,
		Image:       req.Image,
		Hex:         req.Hex,
	}
}

func (s *Shell) CreateProduct(ctx context.Context, req validation.ProductRequest) (catalog.Product, error) {
	if err := validation.Check(req); err != nil {
		return catalog.Product{}, err
	}
	p, err := s.storeImage(ctx, productFrom(req))
	if err != nil {
		return catalog.Product{}, err
	}
	return s.Catalog.Create(ctx, p)
}

// UpdateProduct replaces product id. The id in the path wins over the body.
func (s *Shell) UpdateProduct(ctx context.Context, id string, req validation.ProductRequest) (catalog.Product, error) {
	if err := validation.Check(req); err != nil {
		return catalog.Product{}, err
	}
	p := productFrom(req)
	p.ID = id
	p, err := s.storeImage(ctx, p)
	if err != nil {
		return catalog.Product{}, err
	}
	return s.Catalog.Update(ctx, p)
}

// storeImage moves an embedded upload to media storage; the catalog keeps
// the URL.
func (s *Shell) storeImage(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	if !media.IsDataURI(p.Image) {
		return p, nil
	}
	url, err := s.Media.Put(ctx, p.ID, p.Image)
	if err != nil {
		return catalog.Product{}, err
	}
	p.Image = url
	return p, nil
}

// DeleteProduct removes a product from the catalog. Carts, orders and reviews
// holding a copy of it keep theirs.
func (s *Shell) DeleteProduct(ctx context.Context, id string) error {
	return s.Catalog.Delete(ctx, id)
}

// AdminSettings returns the integration settings with secrets masked.
func (s *Shell) AdminSettings(ctx context.Context) (settings.Settings, error) {
	st, err := s.Settings.Current(ctx)
	if err != nil {
		return settings.Settings{}, err
	}
	return st.Masked(), nil
}

func (s *Shell) UpdateSettings(ctx context.Context, req validation.SettingsRequest) (settings.Settings, error) {
	st, err := s.Settings.Update(ctx, req)
	if err != nil {
		return settings.Settings{}, err
	}
	s.Logger.Info("integration settings updated")
	return st.Masked(), nil
}

func (s *Shell) CreateBackup(ctx context.Context) (backup.Info, error) {
	return s.Backup.Create(ctx)
}

func (s *Shell) ListBackups(ctx context.Context) ([]backup.Info, error) {
	return s.Backup.List(ctx)
}

func (s *Shell) RestoreBackup(ctx context.Context, req validation.RestoreRequest) (backup.Report, error) {
	if err := validation.Check(req); err != nil {
		return backup.Report{}, err
	}
	return s.Backup.Restore(ctx, req.Key)
}

// Recommend asks the shade consultant. It needs no login.
func (s *Shell) Recommend(ctx context.Context, req validation.RecommendRequest) (consultant.Advice, error) {
	return s.Consultant.Recommend(ctx, req)
}
