package server

import (
	"net/http"

	"mpesa-checkout/internal/handler"
	authmw "mpesa-checkout/internal/middleware"
	"mpesa-checkout/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Server struct {
	echo         *echo.Echo
	orderHandler *handler.OrderHandler
	mpesaHandler *handler.MpesaHandler
}

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func NewServer(orderService service.OrderService, mpesaService service.MpesaService, jwtSecret string) *Server {
	e := echo.New()

	e.Validator = &requestValidator{validate: validator.New()}

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:         e,
		orderHandler: handler.NewOrderHandler(orderService),
		mpesaHandler: handler.NewMpesaHandler(mpesaService),
	}

	s.setupRoutes(jwtSecret)
	return s
}

func (s *Server) setupRoutes(jwtSecret string) {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	// -------- orders --------
	orders := api.Group("/orders", authmw.AuthMiddleware(jwtSecret))
	orders.POST("", s.orderHandler.Create)
	orders.GET("", s.orderHandler.List)
	orders.GET("/:id", s.orderHandler.Get)
	orders.GET("/:id/payment-status", s.orderHandler.PaymentStatus)
	orders.PATCH("/:id/fulfillment", s.orderHandler.UpdateFulfillment)

	// -------- m-pesa --------
	mpesa := api.Group("/mpesa")
	mpesa.POST("/stk-push", s.mpesaHandler.STKPush, authmw.AuthMiddleware(jwtSecret))

	// The gateway posts results here; it cannot carry our auth.
	mpesa.POST("/callback", s.mpesaHandler.Callback)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown() error {
	return s.echo.Close()
}
