// Package tenancy maps channel addresses to tenants. It is the only place a
// tenant id is derived for an inbound message.
package tenancy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fleetdesk_backend/internal/docstore"
	"fleetdesk_backend/platform/apperr"
	"fleetdesk_backend/platform/logger"
	"fleetdesk_backend/platform/phone"

	"github.com/google/uuid"
)

const (
	// BindingsCollection holds one binding per canonical address.
	BindingsCollection = "tenant_bindings"
	// UsersCollection holds registered users.
	UsersCollection = "users"
)

// ErrUnregistered is returned when an address has no usable binding.
var ErrUnregistered = errors.New("sender is not registered")

// Identity is a channel address in raw and canonical form.
type Identity struct {
	Raw       string
	Canonical string
}

// Binding ties a canonical address to a tenant and user.
type Binding struct {
	Address   string    `json:"phoneNumber"`
	TenantID  string    `json:"tenantId"`
	UserID    string    `json:"userId"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
}

// Resolution is the outcome of a successful resolve.
type Resolution struct {
	Identity
	TenantID string
	UserID   string
}

// User is a registered account holder.
type User struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phoneNumber"`
	PinHash   string    `json:"pinHash,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Resolver resolves and creates tenant bindings.
type Resolver struct {
	store docstore.Store
	canon phone.Canonicalizer
	log   *logger.Logger
	now   func() time.Time
}

// NewResolver creates a resolver over the document store.
func NewResolver(store docstore.Store, canon phone.Canonicalizer, log *logger.Logger) *Resolver {
	return &Resolver{store: store, canon: canon, log: log, now: time.Now}
}

// Canonicalize returns the identity for a raw channel address.
func (r *Resolver) Canonicalize(raw string) Identity {
	return Identity{Raw: raw, Canonical: r.canon.Canonicalize(raw)}
}

// Resolve maps raw to its tenant. Any failure, including storage errors, is
// reported as ErrUnregistered; there is no default tenant.
func (r *Resolver) Resolve(ctx context.Context, raw string) (Resolution, error) {
	id := r.Canonicalize(raw)
	if id.Canonical == "" {
		return Resolution{Identity: id}, ErrUnregistered
	}

	binding, err := docstore.GetAs[Binding](ctx, r.store, BindingsCollection, id.Canonical)
	if err != nil {
		if !errors.Is(err, docstore.ErrNotFound) {
			r.log.WithContext(ctx).WithAddress(id.Canonical).DatabaseError("resolve_binding", err)
		}
		return Resolution{Identity: id}, ErrUnregistered
	}
	if strings.TrimSpace(binding.TenantID) == "" || strings.TrimSpace(binding.UserID) == "" {
		r.log.WithContext(ctx).WithAddress(id.Canonical).Warn("incomplete tenant binding ignored")
		return Resolution{Identity: id}, ErrUnregistered
	}

	return Resolution{Identity: id, TenantID: binding.TenantID, UserID: binding.UserID}, nil
}

// Lookup returns the stored binding for a canonical address.
func (r *Resolver) Lookup(ctx context.Context, canonical string) (Binding, error) {
	binding, err := docstore.GetAs[Binding](ctx, r.store, BindingsCollection, canonical)
	if errors.Is(err, docstore.ErrNotFound) {
		return Binding{}, apperr.NotFound("no binding for address")
	}
	return binding, err
}

// BindingWrite stages creation of a binding. Creation fails if the address
// is already bound, so bindings are never overwritten.
func (r *Resolver) BindingWrite(canonical, tenantID, userID, source string) (docstore.Write, error) {
	if canonical == "" || tenantID == "" || userID == "" {
		return docstore.Write{}, apperr.Validation("binding requires address, tenant and user")
	}
	return docstore.Write{
		Op:         docstore.OpCreate,
		Collection: BindingsCollection,
		ID:         canonical,
		Doc: Binding{
			Address:   canonical,
			TenantID:  tenantID,
			UserID:    userID,
			Source:    source,
			CreatedAt: r.now().UTC(),
		},
	}, nil
}

// Bind creates a binding for an existing user.
func (r *Resolver) Bind(ctx context.Context, canonical, tenantID, userID, source string) error {
	w, err := r.BindingWrite(canonical, tenantID, userID, source)
	if err != nil {
		return err
	}
	return translateConflict(r.store.Batch(ctx, []docstore.Write{w}))
}

// Registration is the data needed to register a new user and tenant.
type Registration struct {
	// UserID is generated when empty.
	UserID    string
	Address   string
	TenantID  string
	FirstName string
	LastName  string
	Email     string
	PinHash   string
}

// Register creates the user and binding together with any extra writes
// (the organization document) in one batch. It returns the new user id.
func (r *Resolver) Register(ctx context.Context, reg Registration, extra ...docstore.Write) (string, error) {
	if reg.TenantID == "" {
		return "", apperr.Validation("registration requires a tenant id")
	}
	userID := reg.UserID
	if userID == "" {
		userID = uuid.NewString()
	}
	user := User{
		ID:        userID,
		TenantID:  reg.TenantID,
		FirstName: reg.FirstName,
		LastName:  reg.LastName,
		Email:     strings.ToLower(strings.TrimSpace(reg.Email)),
		Phone:     reg.Address,
		PinHash:   reg.PinHash,
		CreatedAt: r.now().UTC(),
	}

	binding, err := r.BindingWrite(reg.Address, reg.TenantID, userID, "onboarding")
	if err != nil {
		return "", err
	}

	writes := append([]docstore.Write{}, extra...)
	writes = append(writes,
		docstore.Write{Op: docstore.OpCreate, Collection: UsersCollection, ID: userID, Doc: user},
		binding,
	)
	if err := translateConflict(r.store.Batch(ctx, writes)); err != nil {
		return "", err
	}
	return userID, nil
}

// FindUserByEmail looks up a registered user by email address.
func (r *Resolver) FindUserByEmail(ctx context.Context, email string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	users, err := docstore.QueryAs[User](ctx, r.store, UsersCollection, []docstore.Filter{docstore.Eq("email", email)}, 2)
	if err != nil {
		return User{}, err
	}
	switch len(users) {
	case 0:
		return User{}, apperr.NotFound("no account uses that email")
	case 1:
		return users[0], nil
	default:
		return User{}, apperr.Conflict("more than one account uses that email")
	}
}

func translateConflict(err error) error {
	if errors.Is(err, docstore.ErrAlreadyExists) {
		return apperr.Conflict("this number is already linked to an account")
	}
	if err != nil {
		return fmt.Errorf("write binding: %w", err)
	}
	return nil
}
