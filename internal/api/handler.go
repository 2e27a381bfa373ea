// Package api exposes the raffle engine over HTTP with gin.
package api

import (
	"errors"
	"io"
	"net/http"
	"raffle/internal/raffle"
	"raffle/internal/stats"
	"raffle/internal/storage"
	"strconv"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// StatsReader is implemented by stores that can report their counters.
type StatsReader interface {
	Totals() map[stats.Operation]stats.Counts
	Drawing(drawingID uint) map[stats.Operation]stats.Counts
}

// maxTTLMinutes bounds ttlMinutes before it becomes a time.Duration.
const maxTTLMinutes = 7 * 24 * 60

type Handler struct {
	engine     *raffle.Engine
	defaultTTL time.Duration
	limiter    *LimiterStore
	stats      StatsReader
}

type HandlerOption func(*Handler)

// WithLimiter throttles reservation requests per caller.
func WithLimiter(l *LimiterStore) HandlerOption {
	return func(h *Handler) { h.limiter = l }
}

// WithStatsReader serves counters on GET /stats and GET /drawings/:id/stats.
func WithStatsReader(r StatsReader) HandlerOption {
	return func(h *Handler) { h.stats = r }
}

func NewHandler(engine *raffle.Engine, defaultTTL time.Duration, opts ...HandlerOption) *Handler {
	h := &Handler{engine: engine, defaultTTL: defaultTTL}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewRouter builds a gin engine with every route registered. Responses are
// gzipped for clients that accept it; slot listings run to thousands of rows.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(), gzip.Gzip(gzip.DefaultCompression))
	h.RegisterRoutes(router)
	return router
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	api := router.Group("/")
	api.Use(Identity())

	api.POST("/drawings", h.CreateDrawing)
	api.GET("/drawings/:id", h.GetDrawing)
	api.GET("/drawings/:id/slots", h.ListSlots)

	reserve := []gin.HandlerFunc{h.Reserve}
	if h.limiter != nil {
		reserve = append([]gin.HandlerFunc{RateLimit(h.limiter)}, reserve...)
	}
	api.POST("/drawings/:id/reservations", reserve...)
	api.DELETE("/drawings/:id/reservations", h.Release)

	api.POST("/drawings/:id/participants", h.Confirm)
	api.PUT("/participants/:id/eligibility", h.SetEligibility)

	api.POST("/drawings/:id/winners", h.SelectWinners)
	api.GET("/drawings/:id/winners", h.GetWinners)

	if h.stats != nil {
		api.GET("/stats", h.Stats)
		api.GET("/drawings/:id/stats", h.DrawingStats)
	}
}

type createDrawingRequest struct {
	Title             string    `json:"title"`
	WinnerSelection   string    `json:"winnerSelection"`
	PlayWithNumbers   bool      `json:"playWithNumbers"`
	QuantityOfNumbers int       `json:"quantityOfNumbers"`
	WinnersAmount     int       `json:"winnersAmount"`
	IsPaid            bool      `json:"isPaid"`
	EndAt             time.Time `json:"endAt"`
}

func (h *Handler) CreateDrawing(c *gin.Context) {
	var req createDrawingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	drawing, err := h.engine.CreateDrawing(c.Request.Context(), currentUser(c), raffle.DrawingDraft{
		Title:             req.Title,
		WinnerSelection:   req.WinnerSelection,
		PlayWithNumbers:   req.PlayWithNumbers,
		QuantityOfNumbers: req.QuantityOfNumbers,
		WinnersAmount:     req.WinnersAmount,
		IsPaid:            req.IsPaid,
		EndAt:             req.EndAt,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newDrawingView(drawing))
}

func (h *Handler) GetDrawing(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	drawing, err := h.engine.GetDrawing(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	participants, err := h.engine.CountParticipants(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	view := newDrawingView(drawing)
	view.Participants = participants
	c.JSON(http.StatusOK, view)
}

func (h *Handler) ListSlots(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	slots, err := h.engine.Slots(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"drawingId": id, "slots": slots})
}

type reserveRequest struct {
	Number     int    `json:"number"`
	Numbers    []int  `json:"numbers"`
	TTLMinutes int    `json:"ttlMinutes"`
	HoldToken  string `json:"holdToken"`
}

type reserveResponse struct {
	HoldToken    string                `json:"holdToken"`
	Reservations []*raffle.Reservation `json:"reservations"`
}

func (h *Handler) Reserve(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req reserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	if req.TTLMinutes < 0 || req.TTLMinutes > maxTTLMinutes {
		badRequest(c, "ttlMinutes must be between 0 and "+strconv.Itoa(maxTTLMinutes))
		return
	}
	ttl := h.defaultTTL
	if req.TTLMinutes != 0 {
		ttl = time.Duration(req.TTLMinutes) * time.Minute
	}

	numbers := req.Numbers
	if len(numbers) == 0 {
		if req.Number == 0 {
			badRequest(c, "number or numbers required")
			return
		}
		numbers = []int{req.Number}
	}

	var (
		reservations []*raffle.Reservation
		err          error
	)
	if len(numbers) == 1 {
		var r *raffle.Reservation
		r, err = h.engine.Reserve(c.Request.Context(), id, numbers[0], ttl, req.HoldToken)
		if err == nil {
			reservations = []*raffle.Reservation{r}
		}
	} else {
		reservations, err = h.engine.ReserveMany(c.Request.Context(), id, numbers, ttl, req.HoldToken)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, reserveResponse{
		HoldToken:    reservations[0].HoldToken,
		Reservations: reservations,
	})
}

type releaseRequest struct {
	Numbers   []int  `json:"numbers"`
	HoldToken string `json:"holdToken"`
}

func (h *Handler) Release(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req releaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := h.engine.ReleaseHold(c.Request.Context(), id, req.Numbers, req.HoldToken); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type confirmRequest struct {
	Numbers   []int  `json:"numbers"`
	HoldToken string `json:"holdToken"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

func (h *Handler) Confirm(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	participant, err := h.engine.Confirm(c.Request.Context(), id, req.Numbers, raffle.ParticipantDraft{
		UserID:    currentUser(c),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		HoldToken: req.HoldToken,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newParticipantView(participant))
}

type eligibilityRequest struct {
	Status string `json:"status"`
}

func (h *Handler) SetEligibility(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req eligibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	participant, err := h.engine.SetEligibility(c.Request.Context(), currentUser(c), id, storage.Eligibility(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newParticipantView(participant))
}

type selectWinnersRequest struct {
	Mode    string `json:"mode"`
	Numbers []int  `json:"numbers"`
}

func (h *Handler) SelectWinners(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	// an empty body, chunked or not, selects with the drawing's defaults
	var req selectWinnersRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err.Error())
		return
	}

	list, err := h.engine.SelectWinners(c.Request.Context(), currentUser(c), id, req.Mode, req.Numbers)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetWinners(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	list, err := h.engine.GetWinners(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.stats.Totals())
}

func (h *Handler) DrawingStats(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, err := h.engine.GetDrawing(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.stats.Drawing(id))
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid id "+strconv.Quote(c.Param("id")))
		return 0, false
	}
	return uint(id), true
}
