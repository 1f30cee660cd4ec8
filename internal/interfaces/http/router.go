package httpinterface

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func newRouter(opts ServiceOpts) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	h := &handler{
		depositSvc: opts.DepositSvc,
		pubsubSvc:  opts.PubSubSvc,
		health:     opts.Health,
		version:    opts.Version,
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", h.healthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1", bearerAuth(opts.APIToken))
	{
		v1.GET("/info", h.getInfo)
		v1.GET("/convert", h.convert)

		v1.POST("/deposits", h.createDeposit)
		v1.GET("/deposits", h.listDeposits)
		v1.GET("/deposits/:id", h.getDeposit)
		v1.POST("/deposits/:id/verify", h.verifyDeposit)
		v1.POST("/deposits/:id/sweep", h.sweepDeposit)

		v1.GET("/webhooks", h.listWebhooks)
		v1.POST("/webhooks", h.addWebhook)
		v1.DELETE("/webhooks/:id", h.removeWebhook)
	}

	return router
}
