// Package tenant carries tenant identity through a request-scoped context
// for the lifetime of a transaction, and distinctly types admin operations
// that are allowed to cross tenant boundaries (spec §4.12).
package tenant

import (
	"context"
	"fmt"
)

// DefaultTenant is the tenant identifier used by the embedded (single
// process, all-tenants-share-one-file) backend when no tenant is bound.
const DefaultTenant = "default"

type ctxKey struct{}

// Context wraps a context.Context with a bound tenant identifier. It is
// the only way the storage layer accepts a tenant — there is no ambient
// global, per spec §9 ("Global mutable state").
type Context struct {
	context.Context
	id string
}

// ID returns the bound tenant identifier.
func (c Context) ID() string { return c.id }

// WithTenant returns a new Context scoped to the given tenant id.
func WithTenant(parent context.Context, id string) Context {
	if id == "" {
		id = DefaultTenant
	}
	return Context{Context: context.WithValue(parent, ctxKey{}, id), id: id}
}

// FromContext recovers the tenant id bound to a plain context.Context, if
// any (e.g. one that passed through middleware using context.WithValue
// directly rather than constructing a tenant.Context).
func FromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKey{}).(string)
	return v, ok
}

// AdminContext marks an operation as explicitly cross-tenant. Only admin
// code paths (e.g. the retention cron iterating every tenant) may
// construct one; it can never be produced by request-scoped code, which
// prevents accidental tenant-isolation leakage.
type AdminContext struct {
	context.Context
}

// AsAdmin promotes a plain context into an AdminContext. Callers must be
// able to justify why tenant isolation is being deliberately bypassed —
// this function exists to make that decision visible at the call site.
func AsAdmin(ctx context.Context) AdminContext {
	return AdminContext{Context: ctx}
}

// Scoped builds a per-tenant Context from an AdminContext, e.g. inside a
// retention job that loops over every known tenant.
func (a AdminContext) Scoped(id string) Context {
	return WithTenant(a.Context, id)
}

// RequireTenant validates that id is non-empty, returning a Validation
// error otherwise. Used at API boundaries before a Context is minted.
func RequireTenant(id string) error {
	if id == "" {
		return fmt.Errorf("tenant id must not be empty")
	}
	return nil
}
