package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/psds-microservice/ticket-bot/internal/handler"
	"go.uber.org/zap"
)

const (
	PathHealth      = "/health"
	PathReady       = "/ready"
	PathMetrics     = "/metrics"
	PathCheckMember = "/check-member"
)

type Deps struct {
	Members   *handler.MemberHandler
	Readiness *handler.Readiness
	Gatherer  prometheus.Gatherer
	Secret    string
	Log       *zap.Logger
}

func New(d Deps) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET(PathHealth, handler.Health)
	r.GET(PathReady, d.Readiness.Ready)
	r.GET(PathMetrics, gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	r.POST(PathCheckMember, handler.BearerAuth(d.Secret, d.Log), d.Members.CheckMember)
	return r
}
