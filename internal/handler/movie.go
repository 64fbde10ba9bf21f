package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-ebooking/internal/repository"
)

const (
	defaultPageSize = 12
	maxPageSize     = 100
)

// MovieHandler serves the read-only catalogue.
type MovieHandler struct {
	Movies *repository.MovieRepo
	Log    *zap.Logger
	Clock  clock
}

func NewMovieHandler(m *repository.MovieRepo, log *zap.Logger) *MovieHandler {
	return &MovieHandler{Movies: m, Log: log}
}

// pageParams reads the 0-based page and the page size.  Negative pages
// become 0, non-positive sizes the default, and huge pages are clamped.
func pageParams(c echo.Context) (page, size int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	if page < 0 {
		page = 0
	}
	size, _ = strconv.Atoi(c.QueryParam("size"))
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	// keeps page*size inside the OFFSET range
	if limit := math.MaxInt32 / size; page > limit {
		page = limit
	}
	return page, size
}

// List returns one page of movies matching q.
func (h *MovieHandler) List(c echo.Context) error {
	page, size := pageParams(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	movies, total, err := h.Movies.Search(ctx, c.QueryParam("q"), page, size)
	if err != nil {
		return serverError(c, h.Log, "search movies", err)
	}
	return respondOK(c, http.StatusOK, echo.Map{
		"page":          page,
		"size":          size,
		"totalElements": total,
		"totalPages":    (total + int64(size) - 1) / int64(size),
		"content":       movies,
	})
}

// Get returns a single movie.
func (h *MovieHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return respondError(c, http.StatusBadRequest, "id required")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	m, err := h.Movies.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return respondError(c, http.StatusNotFound, "movie not found")
	}
	if err != nil {
		return serverError(c, h.Log, "load movie", err)
	}
	return respondOK(c, http.StatusOK, echo.Map{"movie": m})
}

// Ping reports the server time.
func (h *MovieHandler) Ping(c echo.Context) error {
	return respondOK(c, http.StatusOK, echo.Map{"time": h.Clock.now()})
}
