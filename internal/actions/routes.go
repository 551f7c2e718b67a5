package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fleetdesk_backend/internal/docstore"
	"fleetdesk_backend/platform/apperr"
)

// RouteFilter narrows ListRoutes. Status is pushed to the store; the other
// fields are applied in memory.
type RouteFilter struct {
	Status     RouteStatus
	DriverName string
	ClientName string
	Created    DateRange
	Limit      int
}

// NewRoute is the input for CreateRoute.
type NewRoute struct {
	Origin       string     `json:"origin" validate:"required,min=2,max=120"`
	Destination  string     `json:"destination" validate:"required,min=2,max=120"`
	ClientName   string     `json:"clientName" validate:"omitempty,max=120"`
	Rate         Money      `json:"rate" validate:"gte=0"`
	ScheduledFor *time.Time `json:"scheduledFor"`
}

// ListRoutes returns the tenant's routes, newest first.
func (e *Executor) ListRoutes(ctx context.Context, sc *Scope, f RouteFilter) ([]Route, error) {
	if err := sc.check(); err != nil {
		return nil, err
	}
	var filters []docstore.Filter
	if f.Status != "" {
		filters = append(filters, docstore.Eq("status", string(f.Status)))
	}
	driver := normalizeName(f.DriverName)
	client := normalizeName(f.ClientName)
	limit := clampLimit(f.Limit)
	out := make([]Route, 0, limit)
	err := scanScoped(ctx, e, sc, RoutesCollection, filters, docstore.NewestFirst, func(r Route) bool {
		switch {
		case driver != "" && !strings.Contains(normalizeName(r.DriverName), driver):
		case client != "" && !strings.Contains(normalizeName(r.ClientName), client):
		case !f.Created.Contains(r.CreatedAt):
		default:
			out = append(out, r)
		}
		return len(out) < limit
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetRoute loads one route.
func (e *Executor) GetRoute(ctx context.Context, sc *Scope, id string) (Route, error) {
	if err := sc.check(); err != nil {
		return Route{}, err
	}
	return getScoped[Route](ctx, e, sc, RoutesCollection, strings.ToUpper(strings.TrimSpace(id)), "route")
}

// CreateRoute adds a pending route. A named client must exist.
func (e *Executor) CreateRoute(ctx context.Context, sc *Scope, in NewRoute) (Route, error) {
	if err := sc.check(); err != nil {
		return Route{}, err
	}
	in.Origin = strings.TrimSpace(in.Origin)
	in.Destination = strings.TrimSpace(in.Destination)
	if err := e.validate(in); err != nil {
		return Route{}, err
	}

	now := e.now().UTC()
	route := Route{
		TenantID:     sc.TenantID,
		Origin:       in.Origin,
		Destination:  in.Destination,
		Rate:         in.Rate,
		Status:       RoutePending,
		Expenses:     []Expense{},
		ScheduledFor: in.ScheduledFor,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if strings.TrimSpace(in.ClientName) != "" {
		client, err := e.FindClient(ctx, sc, in.ClientName)
		if err != nil {
			return Route{}, err
		}
		route.ClientID = client.ID
		route.ClientName = client.Name
	}

	id, deterministic := sc.newID(PrefixRoute, "create_route", now)
	route.ID = id
	if err := e.create(ctx, RoutesCollection, id, deterministic, route); err != nil {
		return Route{}, err
	}
	return route, nil
}

// UpdateRouteStatus moves a route through its lifecycle. Leaving an active
// state releases the driver and vehicle in the same batch.
func (e *Executor) UpdateRouteStatus(ctx context.Context, sc *Scope, routeID string, status RouteStatus) (Route, error) {
	if err := sc.check(); err != nil {
		return Route{}, err
	}
	route, err := e.GetRoute(ctx, sc, routeID)
	if err != nil {
		return Route{}, err
	}
	if route.Status == status {
		return route, nil
	}
	if status == RouteAssigned {
		return Route{}, apperr.Validation("use assign_route to assign a driver and vehicle")
	}
	if !route.Status.CanTransition(status) {
		return Route{}, apperr.Conflict(fmt.Sprintf("route %s cannot move from %s to %s", route.ID, route.Status, status))
	}

	now := e.now().UTC()
	fields := map[string]any{"status": status, "updatedAt": now}
	route.Status = status
	route.UpdatedAt = now
	if status == RouteCompleted {
		fields["completedAt"] = now
		route.CompletedAt = &now
	}

	writes := []docstore.Write{{Op: docstore.OpUpdate, Collection: RoutesCollection, ID: route.ID, Fields: fields}}
	if !status.Active() {
		if status == RoutePending {
			fields["driverId"], fields["driverName"] = "", ""
			fields["vehicleId"], fields["vehiclePlate"] = "", ""
		}
		writes = append(writes, e.releaseWrites(route, now)...)
		if status == RoutePending {
			route.DriverID, route.DriverName, route.VehicleID, route.VehiclePlate = "", "", "", ""
		}
	}

	if err := e.store.Batch(ctx, writes); err != nil {
		return Route{}, e.storageError(ctx, "update_route_status", err)
	}
	return route, nil
}

func (e *Executor) releaseWrites(route Route, now time.Time) []docstore.Write {
	var writes []docstore.Write
	if route.DriverID != "" {
		writes = append(writes, docstore.Write{
			Op: docstore.OpUpdate, Collection: DriversCollection, ID: route.DriverID,
			Fields: map[string]any{"status": DriverAvailable, "currentRouteId": "", "updatedAt": now},
		})
	}
	if route.VehicleID != "" {
		writes = append(writes, docstore.Write{
			Op: docstore.OpUpdate, Collection: VehiclesCollection, ID: route.VehicleID,
			Fields: map[string]any{"status": VehicleAvailable, "currentRouteId": "", "updatedAt": now},
		})
	}
	return writes
}

// AssignRoute sets driver, vehicle and status on a route and marks both
// resources busy, all in one batch.
func (e *Executor) AssignRoute(ctx context.Context, sc *Scope, routeID, driverName, vehiclePlate string) (Route, error) {
	if err := sc.check(); err != nil {
		return Route{}, err
	}
	route, err := e.GetRoute(ctx, sc, routeID)
	if err != nil {
		return Route{}, err
	}
	if route.Status != RoutePending && route.Status != RouteAssigned {
		return Route{}, apperr.Conflict(fmt.Sprintf("route %s is %s and cannot be assigned", route.ID, route.Status))
	}

	driver, err := e.FindDriver(ctx, sc, driverName)
	if err != nil {
		return Route{}, err
	}
	if driver.Status == DriverInactive {
		return Route{}, apperr.Conflict(fmt.Sprintf("%s is inactive", driver.Name))
	}
	if driver.CurrentRouteID != "" && driver.CurrentRouteID != route.ID {
		return Route{}, apperr.Conflict(fmt.Sprintf("%s is already on route %s", driver.Name, driver.CurrentRouteID))
	}

	vehicle, err := e.FindVehicle(ctx, sc, vehiclePlate)
	if err != nil {
		return Route{}, err
	}
	if vehicle.Status == VehicleMaintenance {
		return Route{}, apperr.Conflict(fmt.Sprintf("vehicle %s is in maintenance", vehicle.Plate))
	}
	if vehicle.CurrentRouteID != "" && vehicle.CurrentRouteID != route.ID {
		return Route{}, apperr.Conflict(fmt.Sprintf("vehicle %s is already on route %s", vehicle.Plate, vehicle.CurrentRouteID))
	}

	now := e.now().UTC()
	writes := []docstore.Write{
		{Op: docstore.OpUpdate, Collection: RoutesCollection, ID: route.ID, Fields: map[string]any{
			"driverId":     driver.ID,
			"driverName":   driver.Name,
			"vehicleId":    vehicle.ID,
			"vehiclePlate": vehicle.Plate,
			"status":       RouteAssigned,
			"updatedAt":    now,
		}},
		{Op: docstore.OpUpdate, Collection: DriversCollection, ID: driver.ID, Fields: map[string]any{
			"status": DriverOnRoute, "currentRouteId": route.ID, "updatedAt": now,
		}},
		{Op: docstore.OpUpdate, Collection: VehiclesCollection, ID: vehicle.ID, Fields: map[string]any{
			"status": VehicleInUse, "currentRouteId": route.ID, "updatedAt": now,
		}},
	}
	// Reassignment frees the previous driver or vehicle.
	previous := Route{DriverID: route.DriverID, VehicleID: route.VehicleID}
	if previous.DriverID == driver.ID {
		previous.DriverID = ""
	}
	if previous.VehicleID == vehicle.ID {
		previous.VehicleID = ""
	}
	writes = append(writes, e.releaseWrites(previous, now)...)

	if err := e.store.Batch(ctx, writes); err != nil {
		return Route{}, e.storageError(ctx, "assign_route", err)
	}

	route.DriverID, route.DriverName = driver.ID, driver.Name
	route.VehicleID, route.VehiclePlate = vehicle.ID, vehicle.Plate
	route.Status = RouteAssigned
	route.UpdatedAt = now
	return route, nil
}

// NewExpense is the input for AddRouteExpense.
type NewExpense struct {
	Category string `json:"category" validate:"required,oneof=fuel toll maintenance allowance loading other"`
	Amount   Money  `json:"amount" validate:"gt=0"`
	Note     string `json:"note" validate:"max=200"`
}

// AddRouteExpense records a cost against a route that is not cancelled.
func (e *Executor) AddRouteExpense(ctx context.Context, sc *Scope, routeID string, in NewExpense) (Route, error) {
	if err := sc.check(); err != nil {
		return Route{}, err
	}
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	if err := e.validate(in); err != nil {
		return Route{}, err
	}
	route, err := e.GetRoute(ctx, sc, routeID)
	if err != nil {
		return Route{}, err
	}
	if route.Status == RouteCancelled {
		return Route{}, apperr.Conflict(fmt.Sprintf("route %s is cancelled", route.ID))
	}

	now := e.now().UTC()
	id, _ := sc.newID(PrefixExpense, "add_route_expense", now)
	for _, existing := range route.Expenses {
		if existing.ID == id {
			return route, nil
		}
	}
	route.Expenses = append(route.Expenses, Expense{ID: id, Category: in.Category, Amount: in.Amount, Note: in.Note, At: now})
	route.UpdatedAt = now

	err = e.store.Update(ctx, RoutesCollection, route.ID, map[string]any{"expenses": route.Expenses, "updatedAt": now})
	if err != nil {
		return Route{}, e.storageError(ctx, "add_route_expense", err)
	}
	return route, nil
}
