package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/imrishuroy/glaze-storefront/internal/checkout"
	"github.com/imrishuroy/glaze-storefront/internal/validation"
)

func (a *api) renderCheckout(c *gin.Context, v checkout.View, err error) {
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (a *api) startCheckout(c *gin.Context) {
	v, err := a.shell.StartCheckout(c.Request.Context(), sessionID(c))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

func (a *api) getCheckout(c *gin.Context) {
	v, err := a.shell.Checkout(sessionID(c))
	a.renderCheckout(c, v, err)
}

func (a *api) submitShipping(c *gin.Context) {
	var req validation.ShippingRequest
	if !a.bind(c, &req) {
		return
	}
	v, err := a.shell.SubmitShipping(sessionID(c), req)
	a.renderCheckout(c, v, err)
}

func (a *api) selectMethod(c *gin.Context) {
	var req validation.MethodRequest
	if !a.bind(c, &req) {
		return
	}
	v, err := a.shell.SelectMethod(sessionID(c), req)
	a.renderCheckout(c, v, err)
}

func (a *api) payWithPayPal(c *gin.Context) {
	v, err := a.shell.PayWithPayPal(c.Request.Context(), sessionID(c))
	a.renderCheckout(c, v, err)
}

func (a *api) payWithMobileMoney(c *gin.Context) {
	var req validation.MobileMoneyRequest
	if c.Request.ContentLength != 0 && !a.bind(c, &req) {
		return
	}
	v, err := a.shell.PayWithMobileMoney(c.Request.Context(), sessionID(c), req)
	a.renderCheckout(c, v, err)
}

// gatewayResult receives the mobile money widget callback.
func (a *api) gatewayResult(c *gin.Context) {
	var req validation.GatewayRequest
	if !a.bind(c, &req) {
		return
	}
	v, err := a.shell.GatewayResult(sessionID(c), req)
	a.renderCheckout(c, v, err)
}

func (a *api) closeCheckout(c *gin.Context) {
	if err := a.shell.CloseCheckout(sessionID(c)); err != nil {
		a.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *api) myOrders(c *gin.Context) {
	list, err := a.shell.MyOrders(c.Request.Context(), sessionID(c))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
