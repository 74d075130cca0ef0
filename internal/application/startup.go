package application

import (
	"context"

	"voice-client/internal/domain"
)

type VersionChecker interface {
	CheckVersion(ctx context.Context) (*domain.VersionInfo, error)
}

// PermissionChecker returns the names of the permissions that were denied.
type PermissionChecker interface {
	Check(ctx context.Context) []string
}

type Connectivity interface {
	Reachable(ctx context.Context) bool
}

type Clipboard interface {
	WriteText(text string) error
}

type AllowAllPermissions struct{}

func (AllowAllPermissions) Check(context.Context) []string { return nil }

type AlwaysReachable struct{}

func (AlwaysReachable) Reachable(context.Context) bool { return true }

type NoopClipboard struct{}

func (NoopClipboard) WriteText(string) error { return nil }
