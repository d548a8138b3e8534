package router

import (
	"kiosk-service/internal/handlers"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

type Handlers struct {
	Kiosks   *handlers.KioskHandler
	Products *handlers.ProductHandler
	Payments *handlers.PaymentHandler
}

func Router(h Handlers, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	kiosks := r.Group("/kiosks")
	{
		kiosks.POST("", h.Kiosks.RegisterKiosk)
		kiosks.GET("", h.Kiosks.ListKiosks)
		kiosks.GET("/:kid", h.Kiosks.GetKiosk)
		kiosks.PUT("/:kid", h.Kiosks.UpdateKiosk)
		kiosks.DELETE("/:kid", h.Kiosks.DeleteKiosk)
		kiosks.POST("/:kid/products", h.Kiosks.AddProduct)
		kiosks.GET("/:kid/products", h.Kiosks.ListProducts)
		kiosks.PATCH("/:kid/products/:pid", h.Kiosks.UpdateProductStatus)
		kiosks.DELETE("/:kid/products/:pid", h.Kiosks.RemoveProduct)
	}

	products := r.Group("/products")
	{
		products.POST("", h.Products.RegisterProduct)
		products.GET("", h.Products.ListProducts)
		products.GET("/:pid", h.Products.GetProduct)
		products.PUT("/:pid", h.Products.UpdateProduct)
		products.DELETE("/:pid", h.Products.DeleteProduct)
		products.POST("/:pid/image", h.Products.UploadImage)
		products.GET("/:pid/image", h.Products.ImageURL)
	}

	payments := r.Group("/payments")
	{
		payments.POST("", h.Payments.CreatePayment)
		payments.POST("/approve", h.Payments.ApprovePayment)
		payments.GET("/transactions", h.Payments.ListTransactions)
		payments.GET("/transactions/:txid", h.Payments.GetTransaction)
	}

	return r
}
