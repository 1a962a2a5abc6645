package handler

import (
	"net/http"

	"audio-embed-service/internal/dto"
	"audio-embed-service/internal/middleware"
	"audio-embed-service/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

type AccountHandler struct {
	accountService service.AccountService
}

func NewAccountHandler(accountService service.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
	}
}

func (h *AccountHandler) DeleteAccount(c echo.Context) error {
	ctx := c.Request().Context()
	account := middleware.AccountFromContext(c)

	if err := h.accountService.Delete(ctx, account.ID); err != nil {
		log.Error().Err(err).Str("account_id", account.ID).Msg("account deletion failed")
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, dto.DeleteAccountResponse{
		Success: true,
		Message: "Account successfully deleted",
	})
}
