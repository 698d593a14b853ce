package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/gridpath/game/grid"
	"github.com/kasuganosora/gridpath/game/mapstore"
	"github.com/kasuganosora/gridpath/game/pathfind"
	"github.com/kasuganosora/gridpath/game/world"
)

var errMapTooLarge = errors.New("map size exceeds limit")

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, mapstore.ErrMapNotFound),
		errors.Is(err, world.ErrAgentNotFound),
		errors.Is(err, world.ErrStatusNotFound):
		return http.StatusNotFound
	case errors.Is(err, pathfind.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, world.ErrAgentExists):
		return http.StatusConflict
	case errors.Is(err, pathfind.ErrOutOfBounds),
		errors.Is(err, pathfind.ErrNonPositiveSpeed),
		errors.Is(err, world.ErrTileBlocked),
		errors.Is(err, grid.ErrNonPositiveCost),
		errors.Is(err, grid.ErrNoPassableTerrain),
		errors.Is(err, grid.ErrInvalidSize),
		errors.Is(err, pathfind.ErrUnknownProfile),
		errors.Is(err, errMapTooLarge):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// rejectReason labels a rejected path request for metrics.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, pathfind.ErrNotReady):
		return "not_ready"
	case errors.Is(err, pathfind.ErrOutOfBounds):
		return "out_of_bounds"
	case errors.Is(err, pathfind.ErrNonPositiveSpeed):
		return "bad_speed"
	case errors.Is(err, pathfind.ErrUnknownProfile):
		return "bad_profile"
	}
	return "other"
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg})
}
