package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// initVehicleRoutes registers the vehicle catalog endpoint.
func (c *Controller) initVehicleRoutes() {
	c.Group.GET("/config/vehicles", c.GetVehicles)
}

// GetVehicles handles GET /api/config/vehicles, serving the catalog the
// annotation UI offers in its vehicle type picker.
func (c *Controller) GetVehicles(ctx echo.Context) error {
	catalog, err := c.Vehicles.List()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load vehicle catalog", statusForError(err))
	}

	return ctx.JSON(http.StatusOK, catalog)
}
