package middleware

import "context"

type principalKey struct{}

// Principal is the authenticated personnel member behind a request.
type Principal struct {
	ID   string
	Name string
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// PersonnelIDFromContext returns the authenticated personnel id or "".
func PersonnelIDFromContext(ctx context.Context) string {
	p, _ := PrincipalFromContext(ctx)
	return p.ID
}

func PersonnelNameFromContext(ctx context.Context) string {
	p, _ := PrincipalFromContext(ctx)
	return p.Name
}

// WithPersonnelID stores a principal carrying only an id.
func WithPersonnelID(ctx context.Context, personnelID string) context.Context {
	return WithPrincipal(ctx, Principal{ID: personnelID})
}
