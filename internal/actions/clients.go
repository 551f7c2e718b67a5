package actions

import (
	"context"
	"fmt"
	"strings"

	"fleetdesk_backend/platform/apperr"
)

// NewClient is the input for CreateClient.
type NewClient struct {
	Name    string `json:"name" validate:"required,min=2,max=120"`
	Phone   string `json:"phone" validate:"omitempty,min=7,max=20"`
	Email   string `json:"email" validate:"omitempty,email"`
	Address string `json:"address" validate:"max=200"`
}

// ListClients returns the tenant's clients in creation order.
func (e *Executor) ListClients(ctx context.Context, sc *Scope, limit int) ([]Client, error) {
	if err := sc.check(); err != nil {
		return nil, err
	}
	return queryScoped[Client](ctx, e, sc, ClientsCollection, nil, clampLimit(limit))
}

// FindClient resolves a client by id or name.
func (e *Executor) FindClient(ctx context.Context, sc *Scope, query string) (Client, error) {
	if err := sc.check(); err != nil {
		return Client{}, err
	}
	q := strings.TrimSpace(query)
	if strings.HasPrefix(strings.ToUpper(q), PrefixClient+"-") {
		return getScoped[Client](ctx, e, sc, ClientsCollection, strings.ToUpper(q), "client")
	}
	clients, err := allScoped[Client](ctx, e, sc, ClientsCollection, nil)
	if err != nil {
		return Client{}, err
	}
	return matchByName(clients, func(c Client) string { return c.Name }, q, "client")
}

// CreateClient adds a client. Names are unique per tenant, ignoring case.
func (e *Executor) CreateClient(ctx context.Context, sc *Scope, in NewClient) (Client, error) {
	if err := sc.check(); err != nil {
		return Client{}, err
	}
	in.Name = strings.Join(strings.Fields(in.Name), " ")
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	if err := e.validate(in); err != nil {
		return Client{}, err
	}

	clients, err := allScoped[Client](ctx, e, sc, ClientsCollection, nil)
	if err != nil {
		return Client{}, err
	}
	now := e.now().UTC()
	id, deterministic := sc.newID(PrefixClient, "create_client", now)
	for _, c := range clients {
		if normalizeName(c.Name) == normalizeName(in.Name) && c.ID != id {
			return Client{}, apperr.Conflict(fmt.Sprintf("client %q already exists", c.Name))
		}
	}

	client := Client{
		ID:        id,
		TenantID:  sc.TenantID,
		Name:      in.Name,
		Phone:     in.Phone,
		Email:     in.Email,
		Address:   strings.TrimSpace(in.Address),
		CreatedAt: now,
	}
	if err := e.create(ctx, ClientsCollection, id, deterministic, client); err != nil {
		return Client{}, err
	}
	return client, nil
}
