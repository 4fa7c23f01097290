package gate

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	goauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// GoogleResolver resolves identities through Google's userinfo endpoint.
type GoogleResolver struct {
	// Endpoint overrides the API base URL; tests point it at a mock server.
	Endpoint string
}

// Resolve fetches the userinfo profile for the token and returns the
// email it is bound to.
func (r GoogleResolver) Resolve(ctx context.Context, ts oauth2.TokenSource) (*Identity, error) {
	opts := []option.ClientOption{option.WithTokenSource(ts)}
	if r.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(r.Endpoint))
	}

	svc, err := goauth2.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gate: creating userinfo service: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gate: fetching userinfo: %w", err)
	}

	if info.Email == "" {
		return nil, fmt.Errorf("gate: userinfo response carries no email")
	}

	return &Identity{Email: info.Email}, nil
}
