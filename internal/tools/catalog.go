// Package tools declares the operations the reasoning service may call and
// executes them through the action executor. Tenant scope always comes from
// the caller's Scope; tenant-like arguments are stripped before decoding.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"fleetdesk_backend/internal/actions"
	"fleetdesk_backend/platform/apperr"
	"fleetdesk_backend/platform/logger"
	"fleetdesk_backend/platform/validator"

	"google.golang.org/genai"
)

// ErrUnknownTool is returned for a tool name the catalog does not declare.
var ErrUnknownTool = errors.New("unknown tool")

// tenantKeys are argument names the model must never control.
var tenantKeys = []string{"tenantId", "tenant_id", "organizationId", "organization_id", "orgId"}

type runFunc func(ctx context.Context, e *actions.Executor, sc *actions.Scope, args map[string]any) (any, error)

// Tool is one declared operation.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	run         runFunc
}

// Catalog holds the declared tools.
type Catalog struct {
	exec   *actions.Executor
	val    *validator.Validator
	log    *logger.Logger
	tools  []Tool
	byName map[string]Tool
}

// NewCatalog declares every tool against exec.
func NewCatalog(exec *actions.Executor, val *validator.Validator, log *logger.Logger) *Catalog {
	c := &Catalog{exec: exec, val: val, log: log, byName: make(map[string]Tool)}
	for _, t := range c.build() {
		c.tools = append(c.tools, t)
		c.byName[t.Name] = t
	}
	return c
}

// Names lists the declared tool names in declaration order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.tools))
	for _, t := range c.tools {
		names = append(names, t.Name)
	}
	return names
}

// Declarations returns the tool schema sent with every reasoning request.
func (c *Catalog) Declarations() []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(c.tools))
	for _, t := range c.tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: t.Parameters,
		})
	}
	return decls
}

// Execute runs one tool call and returns the payload handed back to the
// reasoning service. Failures are reported inside the payload; the bool is
// false when the call did not succeed.
func (c *Catalog) Execute(ctx context.Context, sc *actions.Scope, name string, args map[string]any) (map[string]any, bool) {
	t, ok := c.byName[name]
	if !ok {
		return failure(apperr.NotFound(fmt.Sprintf("%s: %s", ErrUnknownTool, name)).WithDetails(apperr.Candidates{Query: name, Candidates: c.Names()})), false
	}
	if _, raw := args["_raw"]; raw {
		return failure(apperr.Validation("arguments were not valid JSON")), false
	}
	args = c.stripTenantKeys(ctx, name, args)

	result, err := t.run(ctx, c.exec, sc, args)
	if err != nil {
		return failure(err), false
	}
	return map[string]any{"ok": true, "result": result}, true
}

func (c *Catalog) stripTenantKeys(ctx context.Context, tool string, args map[string]any) map[string]any {
	clean := make(map[string]any, len(args))
	for k, v := range args {
		clean[k] = v
	}
	for _, key := range tenantKeys {
		if _, found := clean[key]; found {
			delete(clean, key)
			c.log.WithContext(ctx).Warn("tool_tenant_argument_stripped",
				slog.String("tool", tool),
				slog.String("key", key),
			)
		}
	}
	return clean
}

// failure serialises an error as { ok: false, error: { code, message, candidates } }.
// Internal errors are reported without their cause.
func failure(err error) map[string]any {
	body := map[string]any{}
	var appErr *apperr.Error
	switch {
	case errors.As(err, &appErr) && appErr.Kind != apperr.KindInternal:
		body["code"] = appErr.Kind.String()
		body["message"] = appErr.Message
		if c, ok := appErr.Details.(apperr.Candidates); ok {
			body["candidates"] = c.Candidates
		}
	default:
		body["code"] = apperr.KindInternal.String()
		body["message"] = "the operation could not be completed, try again later"
	}
	return map[string]any{"ok": false, "error": body}
}

// define binds a typed handler. Arguments are decoded into A, normalised and
// validated before fn runs.
func define[A any](val *validator.Validator, name, desc string, params map[string]any, fn func(ctx context.Context, e *actions.Executor, sc *actions.Scope, a A) (any, error)) Tool {
	return Tool{
		Name:        name,
		Description: desc,
		Parameters:  params,
		run: func(ctx context.Context, e *actions.Executor, sc *actions.Scope, args map[string]any) (any, error) {
			var a A
			if err := decode(val, args, &a); err != nil {
				return nil, err
			}
			return fn(ctx, e, sc, a)
		},
	}
}

func decode(val *validator.Validator, args map[string]any, dst any) error {
	if len(args) > 0 {
		data, err := json.Marshal(args)
		if err != nil {
			return apperr.Validation("arguments could not be read")
		}
		if err := json.Unmarshal(data, dst); err != nil {
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) {
				return apperr.Validation(fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type))
			}
			return apperr.Validation("arguments could not be read")
		}
	}
	if n, ok := dst.(normalizer); ok {
		n.normalize()
	}
	if err := val.Struct(dst); err != nil {
		return apperr.Validation(validator.Describe(err))
	}
	return nil
}
