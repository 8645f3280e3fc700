package auth

import (
	"context"
	"errors"
)

var (
	// ErrUnauthenticated is returned when the context carries no user.
	ErrUnauthenticated = errors.New("user not authenticated")
	// ErrPermissionDenied is returned when a user touches another user's resource.
	ErrPermissionDenied = errors.New("cannot access another user's resources")
)

// RequireAuth extracts user claims from context or returns ErrUnauthenticated
func RequireAuth(ctx context.Context) (*UserClaims, error) {
	claims, ok := GetUserClaims(ctx)
	if !ok || claims == nil || claims.UID == "" {
		return nil, ErrUnauthenticated
	}
	return claims, nil
}

// RequireUserAccess verifies the authenticated user owns the resource
func RequireUserAccess(ctx context.Context, ownerID string) (*UserClaims, error) {
	claims, err := RequireAuth(ctx)
	if err != nil {
		return nil, err
	}

	if ownerID != claims.UID {
		return nil, ErrPermissionDenied
	}

	return claims, nil
}
