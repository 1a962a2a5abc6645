package handler

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"audio-embed-service/internal/dto"
	"audio-embed-service/internal/model"
	"audio-embed-service/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

//go:embed templates/*.html
var templateFS embed.FS

var embedTemplate = template.Must(template.ParseFS(templateFS, "templates/embed.html"))

type EmbedHandler struct {
	embedService service.EmbedService
	pricingURL   string
}

func NewEmbedHandler(embedService service.EmbedService, pricingURL string) *EmbedHandler {
	return &EmbedHandler{
		embedService: embedService,
		pricingURL:   pricingURL,
	}
}

type embedPage struct {
	State      service.EmbedState
	Collection *model.Collection
	Tracks     []model.CollectionTrack
	PricingURL string
}

func (h *EmbedHandler) EmbedPage(c echo.Context) error {
	view := h.embedService.Render(c.Request().Context(), c.Param("id"))

	page := embedPage{
		State:      view.State,
		PricingURL: h.pricingURL,
	}
	if view.State == service.EmbedPlayer {
		page.Collection = view.Collection
		page.Tracks = view.Tracks
	}

	var buf bytes.Buffer
	if err := embedTemplate.Execute(&buf, page); err != nil {
		log.Error().Err(err).Msg("render embed template failed")
		return c.String(http.StatusInternalServerError, "Temporarily unavailable")
	}

	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.HTMLBlob(embedStatus(view.State), buf.Bytes())
}

func (h *EmbedHandler) EmbedJSON(c echo.Context) error {
	view := h.embedService.Render(c.Request().Context(), c.Param("id"))

	resp := dto.EmbedResponse{Access: view.Access.String()}
	switch view.State {
	case service.EmbedUnavailable:
		resp.Access = string(service.EmbedUnavailable)
	case service.EmbedPlayer:
		resp.Collection = &dto.CollectionView{
			ID:          view.Collection.ID,
			Title:       view.Collection.Title,
			Description: view.Collection.Description,
			CoverURL:    view.Collection.CoverURL,
		}
		resp.Tracks = make([]dto.TrackView, 0, len(view.Tracks))
		for _, t := range view.Tracks {
			resp.Tracks = append(resp.Tracks, dto.TrackView{
				ID:       t.AudioFile.ID,
				Title:    t.AudioFile.Title,
				Artist:   t.AudioFile.Artist,
				FileURL:  t.AudioFile.FileURL,
				Duration: t.AudioFile.Duration,
				Position: t.Position,
			})
		}
	}

	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.JSON(embedStatus(view.State), resp)
}

func embedStatus(state service.EmbedState) int {
	switch state {
	case service.EmbedUnavailable:
		return http.StatusNotFound
	case service.EmbedTemporarilyUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusOK
	}
}
