// Package router は HTTP ルーティングを組み立てる
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sanosuguru/go-event-registration/internal/api"
	"github.com/sanosuguru/go-event-registration/internal/api/handler"
	"github.com/sanosuguru/go-event-registration/internal/api/middleware"
	"github.com/sanosuguru/go-event-registration/internal/config"
	"github.com/sanosuguru/go-event-registration/internal/pkg/clock"
	"github.com/sanosuguru/go-event-registration/internal/pkg/metrics"
)

// Deps はルーターが必要とする依存
type Deps struct {
	Verifier      middleware.TokenVerifier
	Resolver      middleware.ActorResolver
	Events        handler.EventServiceInterface
	Registrations handler.RegistrationServiceInterface
	Availability  handler.AvailabilityServiceInterface
	Notifications handler.NotificationServiceInterface
	Profiles      handler.ProfileServiceInterface
	Users         handler.UserServiceInterface

	HealthChecks []handler.HealthCheck
	Clock        clock.Clock

	// Metrics が nil の場合は /metrics を公開しない
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	MetricsAuth config.MetricsConfig
}

// New はルーティング済みの Echo を作成する
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler

	middleware.SetupMiddleware(e)
	if d.Metrics != nil {
		e.Use(middleware.PrometheusMiddleware(d.Metrics))
	}

	clk := d.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}
	e.GET("/health", handler.NewHealthHandler(clk, d.HealthChecks...).Check)

	if d.Metrics != nil {
		gatherer := d.Gatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})),
			middleware.MetricsBasicAuth(d.MetricsAuth))
	}

	v1 := e.Group("/api/v1", middleware.RequireAuth(d.Verifier, d.Resolver))

	events := handler.NewEventHandler(d.Events)
	v1.GET("/events", events.List)
	v1.POST("/events", events.Create)
	v1.GET("/events/:id", events.GetByID)
	v1.PUT("/events/:id", events.Update)
	v1.DELETE("/events/:id", events.Delete)
	v1.POST("/events/:id/publish", events.Publish)
	v1.POST("/events/:id/cancel", events.Cancel)
	v1.POST("/events/:id/complete", events.Complete)
	v1.GET("/events/:id/registrations", events.ListRegistrations)

	registrations := handler.NewRegistrationHandler(d.Registrations, d.Availability)
	v1.POST("/events/:id/registrations", registrations.Register)
	v1.GET("/events/:id/availability", registrations.Availability)

	me := handler.NewMeHandler(d.Profiles, d.Events, d.Notifications)
	v1.GET("/me", me.Profile)
	v1.PUT("/me", me.UpdateProfile)
	v1.GET("/me/events", me.Events)
	v1.GET("/me/notifications", me.Notifications)
	v1.POST("/me/notifications/read-all", me.MarkAllNotificationsRead)
	v1.POST("/me/notifications/:id/read", me.MarkNotificationRead)
	v1.DELETE("/me/notifications/:id", me.DeleteNotification)

	users := handler.NewUserHandler(d.Users, d.Notifications)
	v1.GET("/users", users.List)
	v1.GET("/users/:id", users.Get)
	v1.PUT("/users/:id", users.Update)
	v1.DELETE("/users/:id", users.Delete)
	v1.POST("/users/:id/notifications", users.CreateNotification)

	return e
}
