// Package handlers is the HTTP surface of the storefront. Handlers bind and
// validate the request, call one Shell command and render its result.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/imrishuroy/glaze-storefront/internal/storefront"
	"github.com/imrishuroy/glaze-storefront/internal/validation"
)

type api struct {
	shell  *storefront.Shell
	v      *validatorv10.Validate
	logger *slog.Logger
}

// NewRouter builds the gin engine with every storefront route registered.
func NewRouter(shell *storefront.Shell, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger), session())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	Register(r, shell, logger)
	return r
}

// Register adds the storefront routes to r. r must already run the session
// middleware.
func Register(r gin.IRouter, shell *storefront.Shell, logger *slog.Logger) {
	a := &api{shell: shell, v: validation.Default(), logger: logger}

	r.GET("/products", a.listProducts)
	r.GET("/products/:id", a.getProduct)
	r.GET("/products/:id/reviews", a.listReviews)
	r.POST("/products/:id/reviews", a.addReview)

	r.GET("/cart", a.getCart)
	r.POST("/cart/items", a.addToCart)
	r.DELETE("/cart/items/:productId", a.removeFromCart)
	r.DELETE("/cart", a.clearCart)

	au := r.Group("/auth")
	au.POST("/signup", a.signup)
	au.POST("/signup/verify", a.verifySignup)
	au.POST("/login", a.login)
	au.POST("/password/forgot", a.forgotPassword)
	au.POST("/password/reset", a.resetPassword)
	au.POST("/oauth", a.oauthLogin)
	au.POST("/demo", a.demoLogin)
	au.POST("/logout", a.logout)
	au.GET("/me", a.me)

	r.POST("/checkout", a.startCheckout)
	r.GET("/checkout", a.getCheckout)
	r.PUT("/checkout/shipping", a.submitShipping)
	r.PUT("/checkout/method", a.selectMethod)
	r.POST("/checkout/paypal", a.payWithPayPal)
	r.POST("/checkout/mobile-money", a.payWithMobileMoney)
	r.POST("/checkout/gateway", a.gatewayResult)
	r.DELETE("/checkout", a.closeCheckout)

	r.GET("/orders", a.myOrders)
	r.POST("/consultant/recommend", a.recommend)

	ad := r.Group("/admin", a.requireAdmin)
	ad.GET("/orders", a.allOrders)
	ad.PATCH("/orders/:id/status", a.setOrderStatus)
	ad.POST("/products", a.createProduct)
	ad.PUT("/products/:id", a.updateProduct)
	ad.DELETE("/products/:id", a.deleteProduct)
	ad.GET("/settings", a.getSettings)
	ad.PUT("/settings", a.updateSettings)
	ad.POST("/backups", a.createBackup)
	ad.GET("/backups", a.listBackups)
	ad.POST("/backups/restore", a.restoreBackup)
}
