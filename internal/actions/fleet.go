package actions

import (
	"context"
	"fmt"
	"strings"

	"fleetdesk_backend/internal/docstore"
	"fleetdesk_backend/platform/apperr"
)

// NewDriver is the input for CreateDriver.
type NewDriver struct {
	FirstName     string `json:"firstName" validate:"required,min=2,max=60"`
	LastName      string `json:"lastName" validate:"required,min=2,max=60"`
	Phone         string `json:"phone" validate:"required,min=7,max=20"`
	LicenseNumber string `json:"licenseNumber" validate:"max=40"`
}

// DriverUpdate carries optional driver changes.
type DriverUpdate struct {
	Phone         *string       `json:"phone" validate:"omitempty,min=7,max=20"`
	LicenseNumber *string       `json:"licenseNumber" validate:"omitempty,max=40"`
	Status        *DriverStatus `json:"status" validate:"omitempty,oneof=available inactive"`
}

// ListDrivers returns the tenant's drivers, optionally by status.
func (e *Executor) ListDrivers(ctx context.Context, sc *Scope, status DriverStatus, limit int) ([]Driver, error) {
	if err := sc.check(); err != nil {
		return nil, err
	}
	var filters []docstore.Filter
	if status != "" {
		filters = append(filters, docstore.Eq("status", string(status)))
	}
	return queryScoped[Driver](ctx, e, sc, DriversCollection, filters, clampLimit(limit))
}

// FindDriver resolves a driver by id or name.
func (e *Executor) FindDriver(ctx context.Context, sc *Scope, query string) (Driver, error) {
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), PrefixDriver+"-") {
		return getScoped[Driver](ctx, e, sc, DriversCollection, strings.ToUpper(strings.TrimSpace(query)), "driver")
	}
	drivers, err := allScoped[Driver](ctx, e, sc, DriversCollection, nil)
	if err != nil {
		return Driver{}, err
	}
	return matchByName(drivers, func(d Driver) string { return d.Name }, query, "driver")
}

// CreateDriver registers an available driver. Phone numbers are unique per
// tenant.
func (e *Executor) CreateDriver(ctx context.Context, sc *Scope, in NewDriver) (Driver, error) {
	if err := sc.check(); err != nil {
		return Driver{}, err
	}
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := e.validate(in); err != nil {
		return Driver{}, err
	}

	existing, err := queryScoped[Driver](ctx, e, sc, DriversCollection, []docstore.Filter{docstore.Eq("phone", in.Phone)}, 1)
	if err != nil {
		return Driver{}, err
	}

	now := e.now().UTC()
	id, deterministic := sc.newID(PrefixDriver, "create_driver", now)
	if len(existing) > 0 && existing[0].ID != id {
		return Driver{}, apperr.Conflict(fmt.Sprintf("a driver with phone %s already exists (%s)", in.Phone, existing[0].Name))
	}

	driver := Driver{
		ID:            id,
		TenantID:      sc.TenantID,
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		Name:          in.FirstName + " " + in.LastName,
		Phone:         in.Phone,
		LicenseNumber: in.LicenseNumber,
		Status:        DriverAvailable,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.create(ctx, DriversCollection, id, deterministic, driver); err != nil {
		return Driver{}, err
	}
	return driver, nil
}

// UpdateDriver applies changes to a driver. A driver on a route cannot be
// deactivated.
func (e *Executor) UpdateDriver(ctx context.Context, sc *Scope, query string, in DriverUpdate) (Driver, error) {
	if err := sc.check(); err != nil {
		return Driver{}, err
	}
	if err := e.validate(in); err != nil {
		return Driver{}, err
	}
	driver, err := e.FindDriver(ctx, sc, query)
	if err != nil {
		return Driver{}, err
	}

	now := e.now().UTC()
	fields := map[string]any{"updatedAt": now}
	if in.Phone != nil {
		driver.Phone = strings.TrimSpace(*in.Phone)
		fields["phone"] = driver.Phone
	}
	if in.LicenseNumber != nil {
		driver.LicenseNumber = strings.TrimSpace(*in.LicenseNumber)
		fields["licenseNumber"] = driver.LicenseNumber
	}
	if in.Status != nil && *in.Status != driver.Status {
		if driver.CurrentRouteID != "" {
			return Driver{}, apperr.Conflict(fmt.Sprintf("%s is on route %s", driver.Name, driver.CurrentRouteID))
		}
		driver.Status = *in.Status
		fields["status"] = driver.Status
	}
	driver.UpdatedAt = now

	if err := e.store.Update(ctx, DriversCollection, driver.ID, fields); err != nil {
		return Driver{}, e.storageError(ctx, "update_driver", err)
	}
	return driver, nil
}

// NewVehicle is the input for CreateVehicle.
type NewVehicle struct {
	Plate      string `json:"plate" validate:"required,plate"`
	Make       string `json:"make" validate:"max=40"`
	Model      string `json:"model" validate:"max=40"`
	Type       string `json:"type" validate:"omitempty,oneof=truck van bike car bus tanker trailer"`
	CapacityKg int    `json:"capacityKg" validate:"gte=0"`
}

// VehicleUpdate carries optional vehicle changes.
type VehicleUpdate struct {
	Status     *VehicleStatus `json:"status" validate:"omitempty,oneof=available maintenance"`
	CapacityKg *int           `json:"capacityKg" validate:"omitempty,gte=0"`
}

// NormalizePlate upper-cases and collapses whitespace in a plate number.
func NormalizePlate(plate string) string {
	return strings.Join(strings.Fields(strings.ToUpper(plate)), " ")
}

// ListVehicles returns the tenant's vehicles, optionally by status.
func (e *Executor) ListVehicles(ctx context.Context, sc *Scope, status VehicleStatus, limit int) ([]Vehicle, error) {
	if err := sc.check(); err != nil {
		return nil, err
	}
	var filters []docstore.Filter
	if status != "" {
		filters = append(filters, docstore.Eq("status", string(status)))
	}
	return queryScoped[Vehicle](ctx, e, sc, VehiclesCollection, filters, clampLimit(limit))
}

// FindVehicle resolves a vehicle by id or plate. Plates compare without
// spaces or dashes.
func (e *Executor) FindVehicle(ctx context.Context, sc *Scope, query string) (Vehicle, error) {
	q := NormalizePlate(query)
	if strings.HasPrefix(q, PrefixVehicle+"-") {
		return getScoped[Vehicle](ctx, e, sc, VehiclesCollection, q, "vehicle")
	}
	vehicles, err := allScoped[Vehicle](ctx, e, sc, VehiclesCollection, nil)
	if err != nil {
		return Vehicle{}, err
	}
	compact := plateKey(q)
	for _, v := range vehicles {
		if compact != "" && plateKey(v.Plate) == compact {
			return v, nil
		}
	}
	return matchByName(vehicles, func(v Vehicle) string { return v.Plate }, q, "vehicle")
}

func plateKey(plate string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(NormalizePlate(plate))
}

// CreateVehicle registers an available vehicle. Plates are unique per tenant.
func (e *Executor) CreateVehicle(ctx context.Context, sc *Scope, in NewVehicle) (Vehicle, error) {
	if err := sc.check(); err != nil {
		return Vehicle{}, err
	}
	in.Plate = NormalizePlate(in.Plate)
	in.Type = strings.ToLower(strings.TrimSpace(in.Type))
	if err := e.validate(in); err != nil {
		return Vehicle{}, err
	}

	all, err := allScoped[Vehicle](ctx, e, sc, VehiclesCollection, nil)
	if err != nil {
		return Vehicle{}, err
	}
	now := e.now().UTC()
	id, deterministic := sc.newID(PrefixVehicle, "create_vehicle", now)
	for _, v := range all {
		if plateKey(v.Plate) == plateKey(in.Plate) && v.ID != id {
			return Vehicle{}, apperr.Conflict(fmt.Sprintf("vehicle %s is already registered", v.Plate))
		}
	}

	vehicle := Vehicle{
		ID:         id,
		TenantID:   sc.TenantID,
		Plate:      in.Plate,
		Make:       strings.TrimSpace(in.Make),
		Model:      strings.TrimSpace(in.Model),
		Type:       in.Type,
		CapacityKg: in.CapacityKg,
		Status:     VehicleAvailable,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.create(ctx, VehiclesCollection, id, deterministic, vehicle); err != nil {
		return Vehicle{}, err
	}
	return vehicle, nil
}

// UpdateVehicle applies changes to a vehicle. A vehicle on a route cannot go
// into maintenance.
func (e *Executor) UpdateVehicle(ctx context.Context, sc *Scope, query string, in VehicleUpdate) (Vehicle, error) {
	if err := sc.check(); err != nil {
		return Vehicle{}, err
	}
	if err := e.validate(in); err != nil {
		return Vehicle{}, err
	}
	vehicle, err := e.FindVehicle(ctx, sc, query)
	if err != nil {
		return Vehicle{}, err
	}

	now := e.now().UTC()
	fields := map[string]any{"updatedAt": now}
	if in.CapacityKg != nil {
		vehicle.CapacityKg = *in.CapacityKg
		fields["capacityKg"] = vehicle.CapacityKg
	}
	if in.Status != nil && *in.Status != vehicle.Status {
		if vehicle.CurrentRouteID != "" {
			return Vehicle{}, apperr.Conflict(fmt.Sprintf("vehicle %s is on route %s", vehicle.Plate, vehicle.CurrentRouteID))
		}
		vehicle.Status = *in.Status
		fields["status"] = vehicle.Status
	}
	vehicle.UpdatedAt = now

	if err := e.store.Update(ctx, VehiclesCollection, vehicle.ID, fields); err != nil {
		return Vehicle{}, e.storageError(ctx, "update_vehicle", err)
	}
	return vehicle, nil
}
