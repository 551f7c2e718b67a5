package tools

import (
	"context"

	"fleetdesk_backend/internal/actions"
)

const (
	routeStatusDesc = "Route status: pending, assigned, in_progress, completed or cancelled"
	moneyDesc       = "Amount in naira"
)

func (c *Catalog) build() []Tool {
	v := c.val
	return []Tool{
		define(v, "get_wallet_balance",
			"Returns the organization's wallet balance.",
			object(map[string]any{}),
			func(ctx context.Context, e *actions.Executor, sc *actions.Scope, _ noArgs) (any, error) {
				w, err := e.WalletBalance(ctx, sc)
				if err != nil {
					return nil, err
				}
				return map[string]any{"organization": w.Name, "balance": amount(w.Balance), "currency": w.Currency}, nil
			}),

		define(v, "get_routes",
			"Lists routes, newest first. Filters are optional and combine.",
			object(map[string]any{
				"status":     enum(routeStatusDesc, "pending", "assigned", "in_progress", "completed", "cancelled"),
				"driverName": str("Part of the driver's name"),
				"clientName": str("Part of the client's name"),
				"from":       date("Created on or after"),
				"to":         date("Created on or before"),
				"limit":      limitProp,
			}),
			func(ctx context.Context, e *actions.Executor, sc *actions.Scope, a getRoutesArgs) (any, error) {
				r, err := a.toRange()
				if err != nil {
					return nil, err
				}
				routes, err := e.ListRoutes(ctx, sc, actions.RouteFilter{
					Status:     actions.RouteStatus(a.Status),
					DriverName: a.DriverName,
					ClientName: a.ClientName,
					Created:    r,
					Limit:      a.Limit,
				})
				if err != nil {
					return nil, err
				}
				return listView(routes, routeView), nil
			}),

		define(v, "create_route",
			"Creates a pending route. The client, when given, must already exist.",
			object(map[string]any{
				"origin":       str("Pickup location"),
				"destination":  str("Drop-off location"),
				"clientName":   str("Client the route is for"),
				"rate":         num(moneyDesc + " charged for the route"),
				"scheduledFor": date("Planned date"),
			}, "origin", "destination", "rate"),
			func(ctx context.Context, e *actions.Executor, sc *actions.Scope, a createRouteArgs) (any, error) {
				in, err := a.toInput()
				if err != nil {
					return nil, err
				}
				route, err := e.CreateRoute(ctx, sc, in)
				if err != nil {
					return nil, err
				}
				return routeView(route), nil
			}),

		define(v, "update_route_status",
			"Moves a route to a new status. Completing or cancelling releases its driver and vehicle.",
			object(map[string]any{
				"routeId": str("Route id, e.g. RTE-20260101-120000-ABC123"),
				"status":  enum("New status", "pending", "in_progress", "completed", "cancelled"),
			}, "routeId", "status"),
			func(ctx context.Context, e *actions.Executor, sc *actions.Scope, a updateRouteStatusArgs) (any, error) {
				route, err := e.UpdateRouteStatus(ctx, sc, a.RouteID, actions.RouteStatus(a.Status))
				if err != nil {
					return nil, err
				}
				return routeView(route), nil
			}),

		define(v, "assign_route",
			"Assigns a driver and a vehicle to a route in one step.",
			object(map[string]any{
				"routeId": str("Route id"),
				"driver":  str("Driver name or id"),
				"vehicle": str("Vehicle plate or id"),
			}, "routeId", "driver", "vehicle"),
			func(ctx context.Context, e *actions.Executor, sc *actions.Scope, a assignRouteArgs) (any, error) {
				route, err := e.AssignRoute(ctx, sc, a.RouteID, a.Driver, a.Vehicle)
				if err != nil {
					return nil, err
				}
				return routeView(route), nil
			}),

		define(v, "add_route_expense",
			"Records an expense against a route.",
			object(map[string]any{
				"routeId":  str("Route id"),
				"category": enum("Expense category", "fuel", "toll", "maintenance", "allowance", "loading", "other"),
				"amount":   num(moneyDesc),
				"note":     str("Short note"),
			}, "routeId", "category", "amount"),
			func(ctx context.Context, e *actions.Executor, sc *actions.Scope, a addRouteExpenseArgs) (any, error) {
				route, err := e.AddRouteExpense(ctx, sc, a.RouteID, actions.NewExpense{
					Category: a.Category,
					Amount:   actions.FromMajor(a.Amount),
					Note:     a.Note,
				})
				if err != nil {
					return nil, err
				}
				return routeView(route), nil
			}),

		define(v, "get_drivers",
			"Lists drivers, optionally by status.",
			object(map[string]any{
				"status": enum("Driver status", "available", "on_route", "inactive"),
				"limit":  limitProp,
			}),
			func(ctx context.Context, e *actions.Executor, sc *actions.Scope, a getDriversArgs) (any, error) {
				drivers, err := e.ListDrivers(ctx, sc, actions.DriverStatus(a.Status), a.Limit)
				if err != nil {
					return nil, err
				}
				return listView(drivers, driverView), nil
			}),

		define(v, "create_driver",
			"Registers a new driver.",
			object(map[string]any{
				"firstName":     str("First name"),
				"lastName":      str("Last name"),
				"phone":         str("Phone number"),
				"licenseNumber": str("Driver's licence number"),
			}, "firstName", "lastName", "phone"),
			func(ctx context.Context, e *actions.Executor, sc *actions.Scope, a createDriverArgs) (any, error) {
				d, err := e.CreateDriver(ctx, sc, actions.NewDriver{
					FirstName:     a.FirstName,
					LastName:      a.LastName,
					Phone:         a.Phone,
					LicenseNumber: a.LicenseNumber,
				})
				if err != nil {
					return nil, err
				}
				return driverView(d), nil
			}),

		define(v, "update_driver",
			"Updates a driver's phone, licence or availability.",
			object(map[string]any{
				"driver":        str("Driver name or id"),
				"phone":         str("New phone number"),
				"licenseNumber": str("New licence number"),
				"status":        enum("New status", "available", "inactive"),
			}, "driver"),
			func(ctx context.Context, e *actions.Executor, sc *actions.Scope, a updateDriverArgs) (any, error) {
				in := actions.DriverUpdate{Phone: a.Phone, LicenseNumber: a.LicenseNumber}
				if a.Status != nil {
					s := actions.DriverStatus(*a.Status)
					in.Status = &s
				}
				d, err := e.UpdateDriver(ctx, sc, a.Driver, in)
				if err != nil {
					return nil, err
				}
				return driverView(d), nil
			}),

		define(v, "get_vehicles",
			"Lists vehicles, optionally by status.",
			object(map[string]any{
				"status": enum("Vehicle status", "available", "in_use", "maintenance"),
				"limit":  limitProp,
			}),
			func(ctx context.Context, e *actions.Executor, sc *actions.Scope, a getVehiclesArgs) (any, error) {
				vehicles, err := e.ListVehicles(ctx, sc, actions.VehicleStatus(a.Status), a.Limit)
				if err != nil {
					return nil, err
				}
				return listView(vehicles, vehicleView), nil
			}),

		define(v, "create_vehicle",
			"Registers a new vehicle.",
			object(map[string]any{
				"plate":      str("Registration plate"),
				"make":       str("Manufacturer"),
				"model":      str("Model"),
				"type":       enum("Vehicle type", "truck", "van", "bike", "car", "bus", "tanker", "trailer"),
				"capacityKg": integer("Load capacity in kilograms"),
			}, "plate"),
			func(ctx context.Context, e *actions.Executor, sc *actions.Scope, a createVehicleArgs) (any, error) {
				x, err := e.CreateVehicle(ctx, sc, actions.NewVehicle{
					Plate:      a.Plate,
					Make:       a.Make,
					Model:      a.Model,
					Type:       a.Type,
					CapacityKg: a.CapacityKg,
				})
				if err != nil {
					return nil, err
				}
				return vehicleView(x), nil
			}),

		define(v, "update_vehicle",
			"Updates a vehicle's availability or capacity.",
			object(map[string]any{
				"vehicle":    str("Vehicle plate or id"),
				"status":     enum("New status", "available", "maintenance"),
				"capacityKg": integer("Load capacity in kilograms"),
			}, "vehicle"),
			func(ctx context.Context, e *actions.Executor, sc *actions.Scope, a updateVehicleArgs) (any, error) {
				in := actions.VehicleUpdate{CapacityKg: a.CapacityKg}
				if a.Status != nil {
					s := actions.VehicleStatus(*a.Status)
					in.Status = &s
				}
				x, err := e.UpdateVehicle(ctx, sc, a.Vehicle, in)
				if err != nil {
					return nil, err
				}
				return vehicleView(x), nil
			}),

		define(v, "get_clients",
			"Lists clients.",
			object(map[string]any{"limit": limitProp}),
			func(ctx context.Context, e *actions.Executor, sc *actions.Scope, a limitArgs) (any, error) {
				clients, err := e.ListClients(ctx, sc, a.Limit)
				if err != nil {
					return nil, err
				}
				return listView(clients, clientView), nil
			}),

		define(v, "create_client",
			"Adds a client. Names must be unique.",
			object(map[string]any{
				"name":    str("Client or company name"),
				"phone":   str("Phone number"),
				"email":   str("Email address"),
				"address": str("Postal address"),
			}, "name"),
			func(ctx context.Context, e *actions.Executor, sc *actions.Scope, a createClientArgs) (any, error) {
				cl, err := e.CreateClient(ctx, sc, actions.NewClient{Name: a.Name, Phone: a.Phone, Email: a.Email, Address: a.Address})
				if err != nil {
					return nil, err
				}
				return clientView(cl), nil
			}),

		define(v, "get_invoices",
			"Lists invoices, newest first.",
			object(map[string]any{
				"status":     enum("Payment status", "unpaid", "paid"),
				"clientName": str("Part of the client's name"),
				"from":       date("Created on or after"),
				"to":         date("Created on or before"),
				"limit":      limitProp,
			}),
			func(ctx context.Context, e *actions.Executor, sc *actions.Scope, a getInvoicesArgs) (any, error) {
				r, err := a.toRange()
				if err != nil {
					return nil, err
				}
				invoices, err := e.ListInvoices(ctx, sc, actions.InvoiceFilter{
					Status:     actions.InvoiceStatus(a.Status),
					ClientName: a.ClientName,
					Created:    r,
					Limit:      a.Limit,
				})
				if err != nil {
					return nil, err
				}
				return listView(invoices, invoiceView), nil
			}),

		define(v, "create_invoice",
			"Creates an invoice for an existing client. VAT defaults come from the invoice profile.",
			object(map[string]any{
				"clientName": str("Client name"),
				"items": array("Invoice lines", object(map[string]any{
					"description": str("What is billed"),
					"quantity":    num("Quantity"),
					"unitPrice":   num(moneyDesc + " per unit"),
				}, "description", "quantity", "unitPrice")),
				"vatMode": enum("How VAT applies", "none", "exclusive", "inclusive"),
				"vatRate": num("VAT rate in percent, e.g. 7.5"),
				"notes":   str("Notes printed on the invoice"),
			}, "clientName", "items"),
			func(ctx context.Context, e *actions.Executor, sc *actions.Scope, a createInvoiceArgs) (any, error) {
				inv, err := e.CreateInvoice(ctx, sc, a.toInput())
				if err != nil {
					return nil, err
				}
				return invoiceView(inv), nil
			}),

		define(v, "mark_invoice_paid",
			"Marks an invoice as paid.",
			object(map[string]any{"invoiceId": str("Invoice id")}, "invoiceId"),
			func(ctx context.Context, e *actions.Executor, sc *actions.Scope, a invoiceIDArgs) (any, error) {
				inv, err := e.MarkInvoicePaid(ctx, sc, a.InvoiceID)
				if err != nil {
					return nil, err
				}
				return invoiceView(inv), nil
			}),

		define(v, "delete_invoice",
			"Deletes an unpaid invoice. Paid invoices cannot be deleted.",
			object(map[string]any{"invoiceId": str("Invoice id")}, "invoiceId"),
			func(ctx context.Context, e *actions.Executor, sc *actions.Scope, a invoiceIDArgs) (any, error) {
				inv, err := e.DeleteInvoice(ctx, sc, a.InvoiceID)
				if err != nil {
					return nil, err
				}
				return map[string]any{"deleted": inv.ID}, nil
			}),

		define(v, "get_business_summary",
			"Summarises routes, revenue, expenses, profit and invoicing for a period. Profit counts completed routes only.",
			object(map[string]any{
				"from": date("Period start"),
				"to":   date("Period end"),
			}),
			func(ctx context.Context, e *actions.Executor, sc *actions.Scope, a dateRangeArgs) (any, error) {
				r, err := a.toRange()
				if err != nil {
					return nil, err
				}
				s, err := e.BusinessSummary(ctx, sc, r)
				if err != nil {
					return nil, err
				}
				return map[string]any{
					"routes":       s.Routes,
					"revenue":      amount(s.Revenue),
					"expenses":     amount(s.Expenses),
					"netProfit":    amount(s.NetProfit),
					"invoiced":     amount(s.InvoicedTotal),
					"paid":         amount(s.PaidTotal),
					"outstanding":  amount(s.OutstandingTotal),
					"overdueCount": s.OverdueCount,
				}, nil
			}),

		define(v, "get_overdue_invoices",
			"Lists unpaid invoices past their due date, most overdue first.",
			object(map[string]any{}),
			func(ctx context.Context, e *actions.Executor, sc *actions.Scope, _ noArgs) (any, error) {
				overdue, err := e.OverdueInvoices(ctx, sc)
				if err != nil {
					return nil, err
				}
				return listView(overdue, func(o actions.OverdueInvoice) map[string]any {
					view := invoiceView(o.Invoice)
					view["daysOverdue"] = o.DaysOverdue
					return view
				}), nil
			}),

		define(v, "get_fleet_utilization",
			"Reports how many vehicles and drivers are on routes, and which drivers have been idle.",
			object(map[string]any{}),
			func(ctx context.Context, e *actions.Executor, sc *actions.Scope, _ noArgs) (any, error) {
				u, err := e.FleetUtilization(ctx, sc)
				if err != nil {
					return nil, err
				}
				idle, err := e.IdleDrivers(ctx, sc, 0)
				if err != nil {
					return nil, err
				}
				names := make([]string, 0, len(idle))
				for _, d := range idle {
					names = append(names, d.Name)
				}
				return map[string]any{"utilization": u, "idleDrivers": names}, nil
			}),

		define(v, "verify_bank_account",
			"Looks up the holder name of a 10-digit bank account.",
			object(map[string]any{
				"accountNumber": str("10-digit account number"),
				"bankCode":      str("Bank code, e.g. 058"),
			}, "accountNumber", "bankCode"),
			func(ctx context.Context, e *actions.Executor, sc *actions.Scope, a verifyBankArgs) (any, error) {
				acct, err := e.VerifyBankAccount(ctx, sc, a.AccountNumber, a.BankCode)
				if err != nil {
					return nil, err
				}
				return acct, nil
			}),
	}
}
