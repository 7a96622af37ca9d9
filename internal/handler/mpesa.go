package handler

import (
	"io"
	"net/http"

	"mpesa-checkout/internal/dto"
	"mpesa-checkout/internal/model"
	"mpesa-checkout/internal/service"

	"github.com/labstack/echo/v4"
)

type MpesaHandler struct {
	mpesaService service.MpesaService
}

func NewMpesaHandler(mpesaService service.MpesaService) *MpesaHandler {
	return &MpesaHandler{
		mpesaService: mpesaService,
	}
}

func (h *MpesaHandler) STKPush(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.STKPushRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	result, err := h.mpesaService.InitiateSTKPush(ctx, &req)
	if err != nil {
		return c.JSON(http.StatusBadRequest, &dto.STKPushResponse{
			Success: false,
			Error:   err.Error(),
		})
	}

	return c.JSON(http.StatusOK, result)
}

// Callback is the gateway's webhook. It acknowledges with the fixed shape the
// gateway expects no matter what happened internally, otherwise the gateway
// keeps retrying.
func (h *MpesaHandler) Callback(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err == nil {
		h.mpesaService.HandleCallback(ctx, body)
	}

	return c.JSON(http.StatusOK, model.AcceptedAck())
}
