package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/panelku/panelku"
	"github.com/panelku/panelku/api/middleware"
	"github.com/panelku/panelku/config"
	"github.com/panelku/panelku/internal/apierror"
)

type Api struct {
	service *panelku.Panelku
	router  *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router

	api := router.Group("/api")
	api.GET("/platforms", a.GetPlatforms)
	api.GET("/services", a.GetServices)
	api.GET("/actions", a.GetActions)

	order := api.Group("/order")
	order.POST("/checkout", a.Checkout)
	order.POST("/payment-method", a.PaymentMethod)
	order.POST("/upload-proof", a.UploadProof)
	order.GET("/status", a.OrderStatus)

	admin := api.Group("/admin", middleware.AdminAuthMiddleware())
	admin.GET("/orders", a.AdminListOrders)
	admin.POST("/orders/:orderId/status", a.AdminUpdateStatus)

	return router
}

func NewAPI(p *panelku.Panelku) (*Api, error) {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	r := gin.Default()

	corsConf := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", middleware.AdminKeyHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if conf.Frontend.Origin == "*" {
		corsConf.AllowAllOrigins = true
	} else {
		corsConf.AllowOrigins = []string{conf.Frontend.Origin}
	}
	r.Use(cors.New(corsConf))
	r.Use(middleware.RateLimitMiddleware(conf))

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "service": conf.ProjectName, "time": time.Now().UTC()})
	})

	r.Static("/uploads", conf.Upload.Dir)

	return &Api{service: p, router: r}, nil
}

// respondError translates service errors into the storefront's JSON error
// shape, keeping upstream detail attached where present.
func respondError(c *gin.Context, err error) {
	status := apierror.MapErrorToHTTPStatus(err)
	if apiErr, ok := err.(apierror.APIError); ok {
		c.JSON(status, gin.H{"ok": false, "code": apiErr.Code, "error": apiErr.Message, "details": apiErr.Details})
		return
	}
	c.JSON(status, gin.H{"ok": false, "error": err.Error()})
}
