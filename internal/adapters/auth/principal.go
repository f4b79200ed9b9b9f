// Package auth reads the platform principal and guards treasurer routes.
package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/onetoone/internal/domain/model"
)

// PrincipalHeader carries the base64 JSON identity injected by the hosting platform.
const PrincipalHeader = "x-ms-client-principal"

type principalKey struct{}

// PrincipalFromRequest decodes the principal header of r.
func PrincipalFromRequest(r *http.Request) (model.Principal, error) {
	return DecodePrincipal(r.Header.Get(PrincipalHeader))
}

// DecodePrincipal decodes a principal header value.
func DecodePrincipal(v string) (model.Principal, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return model.Principal{}, ErrNoPrincipal
	}
	raw, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(v)
		if err != nil {
			return model.Principal{}, fmt.Errorf("%w: %w", ErrMalformedPrincipal, err)
		}
	}
	var p model.Principal
	if err := json.Unmarshal(raw, &p); err != nil {
		return model.Principal{}, fmt.Errorf("%w: %w", ErrMalformedPrincipal, err)
	}
	if strings.TrimSpace(p.UserID) == "" {
		return model.Principal{}, ErrNoPrincipal
	}
	if p.UserRoles == nil {
		p.UserRoles = []string{}
	}
	return p, nil
}

// EncodePrincipal is the inverse of DecodePrincipal.
func EncodePrincipal(p model.Principal) string {
	raw, _ := json.Marshal(p)
	return base64.StdEncoding.EncodeToString(raw)
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p model.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored in ctx.
func PrincipalFrom(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(model.Principal)
	return p, ok
}
