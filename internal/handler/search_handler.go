package handler

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/go-product-lens/internal/domain"
	"github.com/arturoeanton/go-product-lens/internal/port"
	"github.com/arturoeanton/go-product-lens/internal/service"
)

// SearchHandler identifies uploaded product photos.
type SearchHandler struct {
	match *service.MatchService
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(match *service.MatchService) *SearchHandler {
	return &SearchHandler{match: match}
}

// Register sets up search routes. A non-nil limit handler runs before each search.
func (h *SearchHandler) Register(router fiber.Router, limit fiber.Handler) {
	if limit != nil {
		router.Post("/search", limit, h.Search)
		return
	}
	router.Post("/search", h.Search)
}

type productView struct {
	Name  string  `json:"name"`
	Price string  `json:"price"`
	Image string  `json:"image"`
	Score float64 `json:"score"`
}

type searchResponse struct {
	Found      bool         `json:"found"`
	Product    *productView `json:"product,omitempty"`
	Message    string       `json:"message,omitempty"`
	BestGuess  string       `json:"best_guess,omitempty"`
	Confidence *float64     `json:"confidence,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// Search runs the match pipeline on the "file" upload.
func (h *SearchHandler) Search(c fiber.Ctx) error {
	data, _, err := readUpload(c, "file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	result, err := h.match.Identify(c.Context(), data)
	if err != nil {
		if errors.Is(err, port.ErrInvalidImage) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid image"})
		}
		slog.Error("search failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	resp, err := toSearchResponse(result)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(resp)
}

func toSearchResponse(result domain.MatchResult) (searchResponse, error) {
	switch r := result.(type) {
	case domain.Found:
		return searchResponse{
			Found: true,
			Product: &productView{
				Name:  r.Entry.Name,
				Price: r.Entry.Price,
				Image: r.Entry.ImageURL,
				Score: r.Score,
			},
		}, nil
	case domain.NotFound:
		if r.Guess == nil {
			return searchResponse{Message: service.MessageNoMatch}, nil
		}
		confidence := r.Guess.Confidence
		return searchResponse{
			Message:    service.MessageUnconfirmed,
			BestGuess:  r.Guess.Name,
			Confidence: &confidence,
		}, nil
	case domain.Failed:
		return searchResponse{Error: r.Reason}, nil
	}
	return searchResponse{}, errors.New("unhandled match result")
}
