package tools

import (
	"time"

	"fleetdesk_backend/internal/actions"
)

// Views flatten domain entities for the model: amounts in major units with
// a display string, dates as YYYY-MM-DD.

func amount(m actions.Money) map[string]any {
	return map[string]any{"value": m.Major(), "display": m.String()}
}

func day(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

func dayPtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return day(*t)
}

func routeView(r actions.Route) map[string]any {
	v := map[string]any{
		"id":          r.ID,
		"origin":      r.Origin,
		"destination": r.Destination,
		"status":      string(r.Status),
		"rate":        amount(r.Rate),
		"expenses":    amount(r.ExpenseTotal()),
		"createdAt":   day(r.CreatedAt),
	}
	if r.ClientName != "" {
		v["client"] = r.ClientName
	}
	if r.DriverName != "" {
		v["driver"] = r.DriverName
	}
	if r.VehiclePlate != "" {
		v["vehicle"] = r.VehiclePlate
	}
	if r.ScheduledFor != nil {
		v["scheduledFor"] = dayPtr(r.ScheduledFor)
	}
	if profit, ok := r.NetProfit(); ok {
		v["netProfit"] = amount(profit)
		v["completedAt"] = dayPtr(r.CompletedAt)
	}
	return v
}

func driverView(d actions.Driver) map[string]any {
	v := map[string]any{
		"id":     d.ID,
		"name":   d.Name,
		"phone":  d.Phone,
		"status": string(d.Status),
	}
	if d.LicenseNumber != "" {
		v["licenseNumber"] = d.LicenseNumber
	}
	if d.CurrentRouteID != "" {
		v["currentRouteId"] = d.CurrentRouteID
	}
	return v
}

func vehicleView(x actions.Vehicle) map[string]any {
	v := map[string]any{
		"id":     x.ID,
		"plate":  x.Plate,
		"status": string(x.Status),
	}
	if x.Make != "" || x.Model != "" {
		v["makeModel"] = x.Make + " " + x.Model
	}
	if x.Type != "" {
		v["type"] = x.Type
	}
	if x.CapacityKg > 0 {
		v["capacityKg"] = x.CapacityKg
	}
	if x.CurrentRouteID != "" {
		v["currentRouteId"] = x.CurrentRouteID
	}
	return v
}

func clientView(c actions.Client) map[string]any {
	v := map[string]any{"id": c.ID, "name": c.Name}
	if c.Phone != "" {
		v["phone"] = c.Phone
	}
	if c.Email != "" {
		v["email"] = c.Email
	}
	return v
}

func invoiceView(i actions.Invoice) map[string]any {
	items := make([]map[string]any, 0, len(i.Items))
	for _, it := range i.Items {
		items = append(items, map[string]any{
			"description": it.Description,
			"quantity":    it.Quantity,
			"unitPrice":   amount(it.UnitPrice),
			"amount":      amount(it.Amount),
		})
	}
	v := map[string]any{
		"id":        i.ID,
		"client":    i.ClientName,
		"items":     items,
		"vatMode":   string(i.VATMode),
		"vatRate":   i.VATRate,
		"subtotal":  amount(i.Subtotal),
		"vatAmount": amount(i.VATAmount),
		"total":     amount(i.Total),
		"status":    string(i.Status),
		"dueDate":   day(i.DueDate),
		"createdAt": day(i.CreatedAt),
	}
	if i.PaidAt != nil {
		v["paidAt"] = dayPtr(i.PaidAt)
	}
	return v
}

func listView[T any](items []T, view func(T) map[string]any) map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, view(item))
	}
	return map[string]any{"count": len(out), "items": out}
}
