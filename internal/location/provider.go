// Package location supplies the reference coordinate for shelter ranking.
package location

import (
	"context"
	"errors"
	"fmt"

	"github.com/mr1hm/go-shelter-finder/internal/models"
	"github.com/mr1hm/go-shelter-finder/internal/settings"
)

var (
	ErrUnavailable      = errors.New("location unavailable")
	ErrPermissionDenied = fmt.Errorf("%w: permission denied", ErrUnavailable)
)

type Permission int

const (
	PermissionDenied Permission = iota
	PermissionGranted
)

func (p Permission) String() string {
	if p == PermissionGranted {
		return "granted"
	}
	return "denied"
}

// Provider is the device location collaborator. Both calls are one-shot and
// block until the platform answers or ctx is done.
type Provider interface {
	RequestPermission(ctx context.Context) (Permission, error)
	CurrentCoordinate(ctx context.Context) (models.Coordinate, error)
}

// Static always grants permission and reports a fixed coordinate.
type Static struct {
	Coordinate models.Coordinate
}

func (s Static) RequestPermission(ctx context.Context) (Permission, error) {
	if err := ctx.Err(); err != nil {
		return PermissionDenied, err
	}
	return PermissionGranted, nil
}

func (s Static) CurrentCoordinate(ctx context.Context) (models.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return models.Coordinate{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !s.Coordinate.Valid() {
		return models.Coordinate{}, fmt.Errorf("%w: invalid coordinate", ErrUnavailable)
	}
	return s.Coordinate, nil
}

// Gated denies permission while the user has location services switched off.
type Gated struct {
	inner    Provider
	settings settings.Store
}

func NewGated(inner Provider, store settings.Store) *Gated {
	return &Gated{inner: inner, settings: store}
}

func (g *Gated) RequestPermission(ctx context.Context) (Permission, error) {
	s, err := g.settings.Load(ctx)
	if err != nil {
		return PermissionDenied, fmt.Errorf("loading settings: %w", err)
	}
	if !s.LocationServices {
		return PermissionDenied, nil
	}
	return g.inner.RequestPermission(ctx)
}

func (g *Gated) CurrentCoordinate(ctx context.Context) (models.Coordinate, error) {
	return g.inner.CurrentCoordinate(ctx)
}
