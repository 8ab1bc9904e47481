package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/imrishuroy/glaze-storefront/internal/validation"
)

// Every route here sits behind requireAdmin.

func (a *api) allOrders(c *gin.Context) {
	list, err := a.shell.AllOrders(c.Request.Context())
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (a *api) setOrderStatus(c *gin.Context) {
	var req validation.StatusRequest
	if !a.bind(c, &req) {
		return
	}
	o, err := a.shell.SetOrderStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (a *api) createProduct(c *gin.Context) {
	var req validation.ProductRequest
	if !a.bind(c, &req) {
		return
	}
	p, err := a.shell.CreateProduct(c.Request.Context(), req)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.Header("Location", "/products/"+p.ID)
	c.JSON(http.StatusCreated, p)
}

func (a *api) updateProduct(c *gin.Context) {
	var req validation.ProductRequest
	if !a.bind(c, &req) {
		return
	}
	p, err := a.shell.UpdateProduct(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (a *api) deleteProduct(c *gin.Context) {
	if err := a.shell.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		a.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *api) getSettings(c *gin.Context) {
	st, err := a.shell.AdminSettings(c.Request.Context())
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (a *api) updateSettings(c *gin.Context) {
	var req validation.SettingsRequest
	if !a.bind(c, &req) {
		return
	}
	st, err := a.shell.UpdateSettings(c.Request.Context(), req)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (a *api) createBackup(c *gin.Context) {
	info, err := a.shell.CreateBackup(c.Request.Context())
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

func (a *api) listBackups(c *gin.Context) {
	list, err := a.shell.ListBackups(c.Request.Context())
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (a *api) restoreBackup(c *gin.Context) {
	var req validation.RestoreRequest
	if !a.bind(c, &req) {
		return
	}
	rep, err := a.shell.RestoreBackup(c.Request.Context(), req)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}
