package http

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vivekgangdhar11/wakeme/module/core/domain"
	"github.com/vivekgangdhar11/wakeme/module/core/service"
)

type tripService interface {
	Create(ctx context.Context, in *domain.NewTrip) (*domain.Trip, error)
	List(ctx context.Context) ([]domain.Trip, error)
	Get(ctx context.Context, id string) (*domain.Trip, error)
	Update(ctx context.Context, id string, update *domain.TripUpdate) (*domain.Trip, error)
	Delete(ctx context.Context, id string) error
	AddPoint(ctx context.Context, id string, at domain.Coordinate, ts time.Time) (*domain.Trip, error)
	End(ctx context.Context, id string) (*domain.Trip, error)
}

type trackingService interface {
	Start(ctx context.Context, tripID string) (service.TrackerStatus, error)
	Status(tripID string) (service.TrackerStatus, error)
	StopAlarm(tripID string) (bool, error)
	RetryAlarm(tripID string) error
	End(ctx context.Context, tripID string) error
	Close(tripID string) error
}

// pointRequest accepts both the short and the long coordinate names. The
// timestamp is either RFC 3339 or unix seconds.
type pointRequest struct {
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Ts        any      `json:"ts"`
	Timestamp any      `json:"timestamp"`
}

type TripHandler struct {
	tripSvc     tripService
	trackingSvc trackingService
}

func NewTripHandler(tripSvc tripService, trackingSvc trackingService) *TripHandler {
	return &TripHandler{tripSvc: tripSvc, trackingSvc: trackingSvc}
}

func (h *TripHandler) Register(r *gin.RouterGroup) {
	r.POST("/trips", h.CreateTrip)
	r.GET("/trips", h.ListTrips)
	r.GET("/trips/:id", h.GetTrip)
	r.PUT("/trips/:id", h.UpdateTrip)
	r.DELETE("/trips/:id", h.DeleteTrip)
	r.POST("/trips/:id/point", h.AddPoint)
	r.POST("/trips/:id/end", h.EndTrip)

	r.POST("/trips/:id/tracking", h.StartTracking)
	r.GET("/trips/:id/tracking", h.TrackingStatus)
	r.DELETE("/trips/:id/tracking", h.StopTracking)
	r.POST("/trips/:id/alarm/stop", h.StopAlarm)
	r.POST("/trips/:id/alarm/retry", h.RetryAlarm)
}

func (h *TripHandler) CreateTrip(c *gin.Context) {
	var in domain.NewTrip
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	trip, err := h.tripSvc.Create(c.Request.Context(), &in)
	if err != nil {
		writeError(c, err, "failed to create trip")
		return
	}
	c.JSON(http.StatusCreated, trip)
}

func (h *TripHandler) ListTrips(c *gin.Context) {
	trips, err := h.tripSvc.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch trips"})
		return
	}
	c.JSON(http.StatusOK, trips)
}

func (h *TripHandler) GetTrip(c *gin.Context) {
	trip, err := h.tripSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to fetch trip")
		return
	}
	c.JSON(http.StatusOK, trip)
}

func (h *TripHandler) UpdateTrip(c *gin.Context) {
	var update domain.TripUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	trip, err := h.tripSvc.Update(c.Request.Context(), c.Param("id"), &update)
	if err != nil {
		writeError(c, err, "failed to update trip")
		return
	}
	c.JSON(http.StatusOK, trip)
}

func (h *TripHandler) DeleteTrip(c *gin.Context) {
	id := c.Param("id")
	if err := h.tripSvc.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err, "failed to delete trip")
		return
	}
	_ = h.trackingSvc.Close(id)
	c.JSON(http.StatusOK, gin.H{"message": "Trip deleted successfully"})
}

func (h *TripHandler) AddPoint(c *gin.Context) {
	var req pointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	at, ok := req.coordinate()
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng are required"})
		return
	}
	ts, ok := req.time()
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timestamp"})
		return
	}

	trip, err := h.tripSvc.AddPoint(c.Request.Context(), c.Param("id"), at, ts)
	if err != nil {
		writeError(c, err, "failed to add point")
		return
	}
	c.JSON(http.StatusOK, trip)
}

// EndTrip ends the trip record. A running tracking session is ended with it,
// which also persists its last unsaved sample.
func (h *TripHandler) EndTrip(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	if err := h.trackingSvc.End(ctx, id); err != nil && !errors.Is(err, service.ErrNotTracking) {
		writeError(c, err, "failed to end trip")
		return
	}
	trip, err := h.tripSvc.End(ctx, id)
	if err != nil {
		writeError(c, err, "failed to end trip")
		return
	}
	c.JSON(http.StatusOK, trip)
}

func (h *TripHandler) StartTracking(c *gin.Context) {
	st, err := h.trackingSvc.Start(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to start tracking")
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (h *TripHandler) TrackingStatus(c *gin.Context) {
	st, err := h.trackingSvc.Status(c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to fetch tracking status")
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *TripHandler) StopTracking(c *gin.Context) {
	if err := h.trackingSvc.Close(c.Param("id")); err != nil {
		writeError(c, err, "failed to stop tracking")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Tracking stopped"})
}

func (h *TripHandler) StopAlarm(c *gin.Context) {
	id := c.Param("id")
	stopped, err := h.trackingSvc.StopAlarm(id)
	if err != nil {
		writeError(c, err, "failed to stop alarm")
		return
	}
	st, err := h.trackingSvc.Status(id)
	if err != nil {
		writeError(c, err, "failed to stop alarm")
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopped": stopped, "status": st})
}

func (h *TripHandler) RetryAlarm(c *gin.Context) {
	id := c.Param("id")
	if err := h.trackingSvc.RetryAlarm(id); err != nil {
		if errors.Is(err, service.ErrNotTracking) {
			writeError(c, err, "")
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "alarm signal failed: " + err.Error()})
		return
	}
	st, err := h.trackingSvc.Status(id)
	if err != nil {
		writeError(c, err, "failed to retry alarm")
		return
	}
	c.JSON(http.StatusOK, st)
}

func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrTripNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "trip not found"})
	case errors.Is(err, service.ErrNotTracking):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrAlreadyTracking), errors.Is(err, service.ErrTripEnded):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

func (r *pointRequest) coordinate() (domain.Coordinate, bool) {
	lat, lng := r.Lat, r.Lng
	if lat == nil {
		lat = r.Latitude
	}
	if lng == nil {
		lng = r.Longitude
	}
	if lat == nil || lng == nil {
		return domain.Coordinate{}, false
	}
	return domain.Coordinate{Lat: *lat, Lng: *lng}, true
}

// time returns the zero time when no timestamp was sent.
func (r *pointRequest) time() (time.Time, bool) {
	raw := r.Ts
	if raw == nil {
		raw = r.Timestamp
	}
	switch v := raw.(type) {
	case nil:
		return time.Time{}, true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return time.Time{}, false
		}
		sec, frac := math.Modf(v)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
	case string:
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, false
		}
		return ts, true
	default:
		return time.Time{}, false
	}
}
