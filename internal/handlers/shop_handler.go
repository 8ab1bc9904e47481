package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/imrishuroy/glaze-storefront/internal/validation"
)

func (a *api) listProducts(c *gin.Context) {
	ps, err := a.shell.Products(c.Request.Context())
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ps)
}

func (a *api) getProduct(c *gin.Context) {
	p, err := a.shell.Product(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (a *api) listReviews(c *gin.Context) {
	rs, err := a.shell.ProductReviews(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rs)
}

func (a *api) addReview(c *gin.Context) {
	var req validation.ReviewRequest
	if !a.bind(c, &req) {
		return
	}
	r, err := a.shell.AddReview(c.Request.Context(), sessionID(c), c.Param("id"), req)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (a *api) getCart(c *gin.Context) {
	c.JSON(http.StatusOK, a.shell.Cart(sessionID(c)))
}

func (a *api) addToCart(c *gin.Context) {
	var req validation.CartItemRequest
	if !a.bind(c, &req) {
		return
	}
	v, err := a.shell.AddToCart(c.Request.Context(), sessionID(c), req)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (a *api) removeFromCart(c *gin.Context) {
	c.JSON(http.StatusOK, a.shell.RemoveFromCart(sessionID(c), c.Param("productId")))
}

func (a *api) clearCart(c *gin.Context) {
	c.JSON(http.StatusOK, a.shell.ClearCart(sessionID(c)))
}

func (a *api) recommend(c *gin.Context) {
	var req validation.RecommendRequest
	if !a.bind(c, &req) {
		return
	}
	advice, err := a.shell.Recommend(c.Request.Context(), req)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, advice)
}
