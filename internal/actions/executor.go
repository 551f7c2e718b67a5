// Package actions is the catalog of tenant-scoped domain operations. Wizards
// and reasoning tool calls both end here; nothing else writes domain entities.
package actions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"fleetdesk_backend/internal/docstore"
	"fleetdesk_backend/platform/apperr"
	"fleetdesk_backend/platform/logger"
	"fleetdesk_backend/platform/validator"
)

const (
	defaultListLimit   = 50
	maxListLimit       = 200
	maxCandidates      = 5
	defaultPaymentDays = 14
)

// BankVerifier resolves an account number to its holder's name.
type BankVerifier interface {
	Verify(ctx context.Context, accountNumber, bankCode string) (BankAccount, error)
}

// BankAccount is a verified payout account.
type BankAccount struct {
	AccountNumber string `json:"accountNumber"`
	BankCode      string `json:"bankCode"`
	AccountName   string `json:"accountName"`
}

// Executor performs domain operations against the document store.
type Executor struct {
	store docstore.Store
	bank  BankVerifier
	val   *validator.Validator
	log   *logger.Logger
	now   func() time.Time
}

// NewExecutor creates an executor. bank may be nil when verification is not
// configured.
func NewExecutor(store docstore.Store, bank BankVerifier, val *validator.Validator, log *logger.Logger) *Executor {
	return &Executor{store: store, bank: bank, val: val, log: log, now: time.Now}
}

// SetClock overrides the time source.
func (e *Executor) SetClock(now func() time.Time) {
	e.now = now
}

func (e *Executor) validate(v any) error {
	if err := e.val.Struct(v); err != nil {
		return apperr.Validation(validator.Describe(err))
	}
	return nil
}

func tenantFilter(sc *Scope, extra ...docstore.Filter) []docstore.Filter {
	return append([]docstore.Filter{docstore.Eq("tenantId", sc.TenantID)}, extra...)
}

// tenanted is implemented by every tenant-owned entity.
type tenanted interface {
	Route | Driver | Vehicle | Client | Invoice | InvoiceProfile | Organization
}

func ownerOf(v any) string {
	switch t := v.(type) {
	case Route:
		return t.TenantID
	case Driver:
		return t.TenantID
	case Vehicle:
		return t.TenantID
	case Client:
		return t.TenantID
	case Invoice:
		return t.TenantID
	case InvoiceProfile:
		return t.TenantID
	case Organization:
		return t.TenantID
	}
	return ""
}

// getScoped loads a document and hides documents owned by other tenants.
func getScoped[T tenanted](ctx context.Context, e *Executor, sc *Scope, collection, id, label string) (T, error) {
	var zero T
	if strings.TrimSpace(id) == "" {
		return zero, apperr.Validation(label + " id is required")
	}
	item, err := docstore.GetAs[T](ctx, e.store, collection, strings.TrimSpace(id))
	if errors.Is(err, docstore.ErrNotFound) {
		return zero, apperr.NotFound(fmt.Sprintf("%s %s not found", label, id))
	}
	if err != nil {
		return zero, e.storageError(ctx, "get_"+collection, err)
	}
	if ownerOf(item) != sc.TenantID {
		return zero, apperr.NotFound(fmt.Sprintf("%s %s not found", label, id))
	}
	return item, nil
}

func queryScoped[T tenanted](ctx context.Context, e *Executor, sc *Scope, collection string, filters []docstore.Filter, limit int) ([]T, error) {
	items, err := docstore.QueryAs[T](ctx, e.store, collection, tenantFilter(sc, filters...), limit)
	if err != nil {
		return nil, e.storageError(ctx, "query_"+collection, err)
	}
	out := items[:0]
	for _, item := range items {
		if ownerOf(item) == sc.TenantID {
			out = append(out, item)
		}
	}
	return out, nil
}

// allScoped returns every tenant document matching filters, oldest first.
func allScoped[T tenanted](ctx context.Context, e *Executor, sc *Scope, collection string, filters []docstore.Filter) ([]T, error) {
	var out []T
	err := scanScoped(ctx, e, sc, collection, filters, docstore.OldestFirst, func(item T) bool {
		out = append(out, item)
		return true
	})
	return out, err
}

// scanScoped visits tenant documents in order until fn returns false.
func scanScoped[T tenanted](ctx context.Context, e *Executor, sc *Scope, collection string, filters []docstore.Filter, order docstore.Order, fn func(T) bool) error {
	err := docstore.ScanAs(ctx, e.store, collection, tenantFilter(sc, filters...), order, func(item T) bool {
		if ownerOf(item) != sc.TenantID {
			return true
		}
		return fn(item)
	})
	if err != nil {
		return e.storageError(ctx, "query_"+collection, err)
	}
	return nil
}

// create stores a new entity. Deterministic ids use Set so a replay rewrites
// the same document.
func (e *Executor) create(ctx context.Context, collection, id string, deterministic bool, doc any) error {
	var err error
	if deterministic {
		err = e.store.Set(ctx, collection, id, doc)
	} else {
		err = e.store.Create(ctx, collection, id, doc)
	}
	if errors.Is(err, docstore.ErrAlreadyExists) {
		return apperr.Conflict("an entry with that id already exists")
	}
	if err != nil {
		return e.storageError(ctx, "create_"+collection, err)
	}
	return nil
}

func (e *Executor) storageError(ctx context.Context, op string, err error) error {
	e.log.WithContext(ctx).DatabaseError(op, err)
	return apperr.Wrap(apperr.KindInternal, "storage unavailable", err).WithOp(op)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	}
	return limit
}

// matchByName resolves query against names. An exact (case-insensitive)
// match wins; otherwise a single partial match is accepted. Anything else is
// a not-found error listing candidates.
func matchByName[T any](items []T, name func(T) string, query, label string) (T, error) {
	var zero T
	q := normalizeName(query)
	if q == "" {
		return zero, apperr.Validation(label + " name is required")
	}

	var partial []T
	for _, item := range items {
		n := normalizeName(name(item))
		if n == q {
			return item, nil
		}
		if strings.Contains(n, q) || strings.Contains(q, n) || sharesToken(n, q) {
			partial = append(partial, item)
		}
	}
	if len(partial) == 1 && strings.Contains(normalizeName(name(partial[0])), q) {
		return partial[0], nil
	}

	pool := partial
	if len(pool) == 0 {
		pool = items
	}
	candidates := make([]string, 0, maxCandidates)
	for _, item := range pool {
		candidates = append(candidates, name(item))
	}
	sort.Strings(candidates)
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}
	return zero, apperr.NotFoundWithCandidates(fmt.Sprintf("no single %s matches %q", label, query), query, candidates)
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func sharesToken(a, b string) bool {
	for _, ta := range strings.Fields(a) {
		for _, tb := range strings.Fields(b) {
			if len(ta) > 2 && ta == tb {
				return true
			}
		}
	}
	return false
}

// DateRange is an optional inclusive time window applied in memory.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// Contains reports whether t falls in the range.
func (r DateRange) Contains(t time.Time) bool {
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && t.After(*r.To) {
		return false
	}
	return true
}
