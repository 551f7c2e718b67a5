package notification

import (
	"strings"
	"text/template"

	"fleetdesk_backend/internal/actions"
)

// lowUtilization is the percentage below which an idle fleet is reported.
const lowUtilization = 50.0

type digest struct {
	Organization string
	Overdue      []actions.OverdueInvoice
	IdleDrivers  []actions.Driver
	Utilization  actions.Utilization
}

func (d digest) isEmpty() bool {
	return len(d.Overdue) == 0 && len(d.IdleDrivers) == 0 && !d.lowUsage()
}

func (d digest) lowUsage() bool {
	usable := d.Utilization.Vehicles - d.Utilization.VehiclesInService
	return usable > 0 && d.Utilization.UtilizationPercent < lowUtilization
}

func (d digest) OverdueTotal() string {
	var total actions.Money
	for _, inv := range d.Overdue {
		total += inv.Total
	}
	return total.String()
}

func (d digest) LowUsage() bool { return d.lowUsage() }

var digestTemplate = template.Must(template.New("digest").Funcs(template.FuncMap{
	"first": func(n int, items any) any {
		switch v := items.(type) {
		case []actions.OverdueInvoice:
			if len(v) > n {
				return v[:n]
			}
		case []actions.Driver:
			if len(v) > n {
				return v[:n]
			}
		}
		return items
	},
	"more": func(n, total int) int {
		if total > n {
			return total - n
		}
		return 0
	},
}).Parse(`Good day, {{.Organization}}. Here's your FleetDesk update.
{{- if .Overdue}}

Overdue invoices: {{len .Overdue}} totalling {{.OverdueTotal}}
{{- range first 5 .Overdue}}
- {{.ClientName}}: {{.Total}} ({{.DaysOverdue}} day(s) overdue)
{{- end}}
{{- with more 5 (len .Overdue)}}
- and {{.}} more
{{- end}}
{{- end}}
{{- if .IdleDrivers}}

Drivers without a route in 3 days: {{len .IdleDrivers}}
{{- range first 5 .IdleDrivers}}
- {{.Name}}
{{- end}}
{{- with more 5 (len .IdleDrivers)}}
- and {{.}} more
{{- end}}
{{- end}}
{{- if .LowUsage}}

Fleet utilization is {{printf "%.1f" .Utilization.UtilizationPercent}}%: {{.Utilization.VehiclesInUse}} of {{.Utilization.Vehicles}} vehicle(s) on the road.
{{- end}}

Reply "menu" to see what I can do.`))

func compose(d digest) (string, error) {
	var b strings.Builder
	if err := digestTemplate.Execute(&b, d); err != nil {
		return "", err
	}
	return b.String(), nil
}
