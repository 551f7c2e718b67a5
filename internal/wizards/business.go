package wizards

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"fleetdesk_backend/internal/actions"
	"fleetdesk_backend/internal/flow"
	"fleetdesk_backend/internal/session"
)

var contactPhonePattern = regexp.MustCompile(`^\+?[0-9 ()-]{7,20}$`)

var vehicleTypes = []string{"truck", "van", "bike", "car", "bus", "tanker", "trailer"}

func phoneStep(key, label string, optional bool) flow.Step {
	hint := ""
	if optional {
		hint = " Reply SKIP if you don't have one."
	}
	return flow.Step{
		Key:    key,
		Prompt: prompt(fmt.Sprintf("What's the %s phone number?%s", label, hint)),
		Validate: func(_ context.Context, _ flow.Env, _ session.Fields, input string) (any, error) {
			if optional && isSkip(input) {
				return "", nil
			}
			if !contactPhonePattern.MatchString(input) {
				return nil, flow.Invalid("%q is not a phone number", input)
			}
			return strings.Join(strings.Fields(input), ""), nil
		},
	}
}

func optionalText(key, question, label string, max int) flow.Step {
	return flow.Step{
		Key:    key,
		Prompt: prompt(question + " Reply SKIP to leave it out."),
		Validate: func(_ context.Context, _ flow.Env, _ session.Fields, input string) (any, error) {
			if isSkip(input) {
				return "", nil
			}
			return text(input, label, 1, max)
		},
	}
}

func clientFlow(d Deps) *flow.Definition {
	return &flow.Definition{
		ID:    Client,
		Title: "New client",
		Steps: []flow.Step{
			{
				Key:    "name",
				Prompt: prompt("What's the client's name?"),
				Validate: func(_ context.Context, _ flow.Env, _ session.Fields, input string) (any, error) {
					return text(input, "client name", 2, 120)
				},
			},
			phoneStep("phone", "client's", true),
			{
				Key:    "email",
				Prompt: prompt("What's the client's email? Reply SKIP to leave it out."),
				Validate: func(_ context.Context, _ flow.Env, _ session.Fields, input string) (any, error) {
					if isSkip(input) {
						return "", nil
					}
					return d.email(input)
				},
			},
			optionalText("address", "What's the client's address?", "address", 200),
		},
		Summary: func(f session.Fields, _ string) string {
			return summaryLines("New client:",
				[2]string{"Name", f.String("name")},
				[2]string{"Phone", orDash(f.String("phone"))},
				[2]string{"Email", orDash(f.String("email"))},
				[2]string{"Address", orDash(f.String("address"))},
			)
		},
		Commit: func(ctx context.Context, env flow.Env, f session.Fields) (string, error) {
			client, err := d.Exec.CreateClient(ctx, scopeOf(env), actions.NewClient{
				Name:    f.String("name"),
				Phone:   f.String("phone"),
				Email:   f.String("email"),
				Address: f.String("address"),
			})
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Client %s added (%s).", client.Name, client.ID), nil
		},
	}
}

func driverFlow(d Deps) *flow.Definition {
	return &flow.Definition{
		ID:    Driver,
		Title: "New driver",
		Steps: []flow.Step{
			{
				Key:    "name",
				Prompt: prompt("What's the driver's full name? e.g. John Bello"),
				Validate: func(_ context.Context, _ flow.Env, _ session.Fields, input string) (any, error) {
					parts := strings.Fields(strings.ReplaceAll(input, "|", " "))
					if len(parts) < 2 {
						return nil, flow.Invalid("please give both first and last name")
					}
					first, err := text(parts[0], "first name", 2, 60)
					if err != nil {
						return nil, err
					}
					last, err := text(strings.Join(parts[1:], " "), "last name", 2, 60)
					if err != nil {
						return nil, err
					}
					return []string{first, last}, nil
				},
				Accept: func(_ context.Context, _ flow.Env, f session.Fields, value any) (flow.Outcome, error) {
					parts := value.([]string)
					f[fieldFirstName] = parts[0]
					f[fieldLastName] = parts[1]
					return flow.Outcome{}, nil
				},
			},
			phoneStep("phone", "driver's", false),
			optionalText("license", "What's the driver's licence number?", "licence number", 40),
		},
		Summary: func(f session.Fields, _ string) string {
			return summaryLines("New driver:",
				[2]string{"Name", f.String(fieldFirstName) + " " + f.String(fieldLastName)},
				[2]string{"Phone", f.String("phone")},
				[2]string{"Licence", orDash(f.String("license"))},
			)
		},
		Commit: func(ctx context.Context, env flow.Env, f session.Fields) (string, error) {
			driver, err := d.Exec.CreateDriver(ctx, scopeOf(env), actions.NewDriver{
				FirstName:     f.String(fieldFirstName),
				LastName:      f.String(fieldLastName),
				Phone:         f.String("phone"),
				LicenseNumber: f.String("license"),
			})
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Driver %s added (%s). They're available for routes now.", driver.Name, driver.ID), nil
		},
	}
}

func vehicleFlow(d Deps) *flow.Definition {
	return &flow.Definition{
		ID:    Vehicle,
		Title: "New vehicle",
		Steps: []flow.Step{
			{
				Key:    "plate",
				Prompt: prompt("What's the plate number? e.g. LAG 123 XY"),
				Validate: func(_ context.Context, _ flow.Env, _ session.Fields, input string) (any, error) {
					plate := actions.NormalizePlate(input)
					if err := d.Val.Var(plate, "required,plate"); err != nil {
						return nil, flow.Invalid("%q is not a plate number", input)
					}
					return plate, nil
				},
			},
			{
				Key:    "type",
				Prompt: prompt("What type of vehicle is it? (" + strings.Join(vehicleTypes, ", ") + ")"),
				Options: func(session.Fields) []flow.Option {
					// Channels cap quick replies at three buttons.
					return []flow.Option{{ID: "truck", Title: "Truck"}, {ID: "van", Title: "Van"}, {ID: "bike", Title: "Bike"}}
				},
				Validate: func(_ context.Context, _ flow.Env, _ session.Fields, input string) (any, error) {
					v := strings.ToLower(strings.TrimSpace(input))
					for _, t := range vehicleTypes {
						if v == t {
							return v, nil
						}
					}
					return nil, flow.Invalid("choose one of: %s", strings.Join(vehicleTypes, ", "))
				},
			},
			{
				Key:    "make_model",
				Prompt: prompt("What make and model is it? e.g. Toyota Hiace. Reply SKIP to leave it out."),
				Validate: func(_ context.Context, _ flow.Env, _ session.Fields, input string) (any, error) {
					if isSkip(input) {
						return []string{"", ""}, nil
					}
					parts := strings.Fields(input)
					if len(parts) == 0 {
						return nil, flow.Invalid("enter the make and model, or SKIP")
					}
					brand := parts[0]
					model := strings.Join(parts[1:], " ")
					if len(brand) > 40 || len(model) > 40 {
						return nil, flow.Invalid("make and model must be at most 40 characters each")
					}
					return []string{brand, model}, nil
				},
				Accept: func(_ context.Context, _ flow.Env, f session.Fields, value any) (flow.Outcome, error) {
					parts := value.([]string)
					f["make"] = parts[0]
					f["model"] = parts[1]
					return flow.Outcome{}, nil
				},
			},
			{
				Key:    "capacity",
				Prompt: prompt("What's the load capacity in kg? Reply SKIP if you're not sure."),
				Validate: func(_ context.Context, _ flow.Env, _ session.Fields, input string) (any, error) {
					if isSkip(input) {
						return 0, nil
					}
					kg, err := strconv.Atoi(strings.TrimSuffix(strings.ReplaceAll(strings.ToLower(input), ",", ""), "kg"))
					if err != nil || kg < 0 {
						return nil, flow.Invalid("enter the capacity as a whole number of kg")
					}
					return kg, nil
				},
			},
		},
		Summary: func(f session.Fields, _ string) string {
			capacity := "-"
			if kg, _ := f.Int64("capacity"); kg > 0 {
				capacity = fmt.Sprintf("%d kg", kg)
			}
			return summaryLines("New vehicle:",
				[2]string{"Plate", f.String("plate")},
				[2]string{"Type", f.String("type")},
				[2]string{"Make", orDash(strings.TrimSpace(f.String("make") + " " + f.String("model")))},
				[2]string{"Capacity", capacity},
			)
		},
		Commit: func(ctx context.Context, env flow.Env, f session.Fields) (string, error) {
			kg, _ := f.Int64("capacity")
			vehicle, err := d.Exec.CreateVehicle(ctx, scopeOf(env), actions.NewVehicle{
				Plate:      f.String("plate"),
				Make:       f.String("make"),
				Model:      f.String("model"),
				Type:       f.String("type"),
				CapacityKg: int(kg),
			})
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Vehicle %s added (%s).", vehicle.Plate, vehicle.ID), nil
		},
	}
}
