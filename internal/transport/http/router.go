package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/dverbin/ecom_api/internal/handlers"
	"github.com/dverbin/ecom_api/internal/metrics"
	"github.com/dverbin/ecom_api/internal/token"
)

type Deps struct {
	DB             *gorm.DB
	Tokens         *token.Service
	AuthHandler    *handlers.AuthHandler
	ProductHandler *handlers.ProductHandler
	CartHandler    *handlers.CartHandler
	AddressHandler *handlers.AddressHandler
	OrderHandler   *handlers.OrderHandler
	AdminHandler   *handlers.AdminHandler
	SearchHandler  *handlers.SearchHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/metrics", metrics.Handler())

	v1 := e.Group("/api/v1")

	v1.POST("/signup", d.AuthHandler.Signup)
	v1.POST("/token", d.AuthHandler.Token)
	v1.GET("/me", d.AuthHandler.Me, d.Tokens.RequireAuth)

	products := v1.Group("/products")
	products.GET("", d.ProductHandler.GetProducts)
	products.GET("/search", d.SearchHandler.Search)
	products.GET("/:id", d.ProductHandler.GetProduct)
	products.GET("/:id/images", d.ProductHandler.GetImages)
	products.POST("", d.ProductHandler.CreateProduct, d.Tokens.RequireAdmin)
	products.PUT("/:id", d.ProductHandler.UpdateProduct, d.Tokens.RequireAdmin)
	products.PUT("/:id/toggle", d.ProductHandler.ToggleProduct, d.Tokens.RequireAdmin)
	products.DELETE("/:id", d.ProductHandler.DeleteProduct, d.Tokens.RequireAdmin)
	products.POST("/:id/images", d.ProductHandler.UploadImage, d.Tokens.RequireAdmin)

	addresses := v1.Group("/addresses", d.Tokens.RequireAuth)
	addresses.POST("", d.AddressHandler.AddAddress)
	addresses.GET("", d.AddressHandler.GetAddresses)
	addresses.PUT("/:id/primary", d.AddressHandler.SetPrimary)
	addresses.DELETE("/:id", d.AddressHandler.DeleteAddress)

	cart := v1.Group("/cart", d.Tokens.RequireAuth)
	cart.POST("", d.CartHandler.AddToCart)
	cart.GET("", d.CartHandler.GetCart)
	cart.PUT("/:productID", d.CartHandler.UpdateQuantity)
	cart.DELETE("/:productID", d.CartHandler.RemoveFromCart)

	orders := v1.Group("/orders", d.Tokens.RequireAuth)
	orders.POST("", d.OrderHandler.CreateOrder)
	orders.GET("", d.OrderHandler.ListOrders)
	orders.GET("/:id", d.OrderHandler.GetOrder)
	orders.GET("/:id/timeline", d.OrderHandler.GetTimeline)
	orders.POST("/:id/pay", d.OrderHandler.Pay)
	orders.POST("/:id/refund", d.OrderHandler.Refund)

	v1.PUT("/orders/:id/status", d.OrderHandler.UpdateStatus, d.Tokens.RequireAdmin)

	admin := v1.Group("/admin", d.Tokens.RequireAdmin)
	admin.GET("/users", d.AdminHandler.GetUsers)
	admin.POST("/make-admin/:id", d.AdminHandler.MakeAdmin)
	admin.GET("/orders", d.AdminHandler.GetOrders)
	admin.GET("/revenue", d.AdminHandler.GetRevenue)
	admin.GET("/low-stock", d.AdminHandler.GetLowStock)
	admin.GET("/stats", d.AdminHandler.GetStats)
}
