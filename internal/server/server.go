package server

import (
	"context"
	"net/http"

	"audio-embed-service/internal/handler"
	appmw "audio-embed-service/internal/middleware"
	"audio-embed-service/internal/repository"
	"audio-embed-service/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Webhook     service.WebhookService
	Billing     service.BillingService
	Checkout    service.CheckoutService
	Entitlement service.EntitlementService
	Embed       service.EmbedService
	Account     service.AccountService
}

type Options struct {
	JWTSecret  string
	PricingURL string
}

type Server struct {
	echo           *echo.Echo
	stripeHandler  *handler.StripeHandler
	accountHandler *handler.AccountHandler
	embedHandler   *handler.EmbedHandler
	auth           echo.MiddlewareFunc
}

type requestValidator struct {
	validator *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validator.Struct(i)
}

func NewServer(services *Services, accountRepo repository.AccountRepository, opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validator: validator.New()}

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Error != nil {
				evt = log.Error().Err(v.Error)
			}
			evt.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"*"},
	}))

	s := &Server{
		echo:           e,
		stripeHandler:  handler.NewStripeHandler(services.Webhook, services.Billing, services.Checkout, services.Entitlement),
		accountHandler: handler.NewAccountHandler(services.Account),
		embedHandler:   handler.NewEmbedHandler(services.Embed, opts.PricingURL),
		auth:           appmw.AuthMiddleware(opts.JWTSecret, accountRepo),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/embed/:id", s.embedHandler.EmbedPage)

	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})
	api.GET("/public/collections/:id", s.embedHandler.EmbedJSON)

	// -------- stripe / account functions --------
	fn := s.echo.Group("/functions/v1")
	fn.Any("/stripe-webhook", s.stripeHandler.Webhook, appmw.PostOnly())
	fn.Any("/stripe-cancel-subscription", s.stripeHandler.CancelSubscription, appmw.PostOnly(), s.auth)
	fn.Any("/stripe-checkout", s.stripeHandler.Checkout, appmw.PostOnly(), s.auth)
	fn.Any("/stripe-customer-portal", s.stripeHandler.CustomerPortal, appmw.PostOnly(), s.auth)
	fn.Any("/delete-account", s.accountHandler.DeleteAccount, appmw.PostOnly(), s.auth)
	fn.GET("/billing-status", s.stripeHandler.BillingStatus, s.auth)
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
