package storefront

import (
	"context"

	"github.com/imrishuroy/glaze-storefront/internal/cart"
	"github.com/imrishuroy/glaze-storefront/internal/catalog"
	"github.com/imrishuroy/glaze-storefront/internal/reviews"
	"github.com/imrishuroy/glaze-storefront/internal/validation"
	"github.com/shopspring/decimal"
)

// ProductDetail is a product with its review summary.
type ProductDetail struct {
	catalog.Product
	Reviews reviews.Summary `json:"reviews"`
}

// CartView is the cart as a client sees it.
type CartView struct {
	Items  []cart.Item     `json:"items"`
	Total  decimal.Decimal `json:"total"`
	Count  int             `json:"count"`
	Opened bool            `json:"opened,omitempty"` // open the cart panel
}

func (s *Shell) Products(ctx context.Context) ([]catalog.Product, error) {
	return s.Catalog.List(ctx)
}

func (s *Shell) Product(ctx context.Context, id string) (ProductDetail, error) {
	p, err := s.Catalog.Get(ctx, id)
	if err != nil {
		return ProductDetail{}, err
	}
	sum, err := s.Reviews.Summary(ctx, id)
	if err != nil {
		return ProductDetail{}, err
	}
	return ProductDetail{Product: p, Reviews: sum}, nil
}

func (s *Shell) ProductReviews(ctx context.Context, productID string) ([]reviews.Review, error) {
	return s.Reviews.ListByProduct(ctx, productID)
}

// AddReview posts a review as the session user, or as a guest under req.Author.
func (s *Shell) AddReview(ctx context.Context, sessionID, productID string, req validation.ReviewRequest) (reviews.Review, error) {
	if err := validation.Check(req); err != nil {
		return reviews.Review{}, err
	}
	if _, err := s.Catalog.Get(ctx, productID); err != nil {
		return reviews.Review{}, err
	}
	author := req.Author
	u, err := s.User(ctx, sessionID)
	if err != nil {
		return reviews.Review{}, err
	}
	if u != nil {
		author = u.Name
	}
	return s.Reviews.Add(ctx, productID, author, req.Rating, req.Comment)
}

func (s *Shell) cartView(c *cart.Cart, opened bool) CartView {
	items := c.Items()
	return CartView{Items: items, Total: cart.Total(items), Count: c.Count(), Opened: opened}
}

func (s *Shell) Cart(sessionID string) CartView {
	c := s.peek(sessionID)
	if c == nil {
		return s.cartView(cart.New(), false)
	}
	return s.cartView(c.cart, false)
}

// AddToCart adds one unit of a catalog product.
func (s *Shell) AddToCart(ctx context.Context, sessionID string, req validation.CartItemRequest) (CartView, error) {
	if err := validation.Check(req); err != nil {
		return CartView{}, err
	}
	p, err := s.Catalog.Get(ctx, req.ProductID)
	if err != nil {
		return CartView{}, err
	}
	c := s.client(sessionID).cart
	opened := c.Add(p)
	return s.cartView(c, opened), nil
}

func (s *Shell) RemoveFromCart(sessionID, productID string) CartView {
	c := s.peek(sessionID)
	if c == nil {
		return s.cartView(cart.New(), false)
	}
	c.cart.Remove(productID)
	return s.cartView(c.cart, false)
}

func (s *Shell) ClearCart(sessionID string) CartView {
	c := s.peek(sessionID)
	if c == nil {
		return s.cartView(cart.New(), false)
	}
	c.cart.Clear()
	return s.cartView(c.cart, false)
}
