// Package spotlight tracks which asset the operator is focused on and moves the camera when that
// focus changes.
package spotlight

import (
	"errors"
	"fmt"
	"strings"

	"fleetmap/core-go/internal/fleet"
	"fleetmap/core-go/internal/mapadapter"
)

const DefaultFollowZoom = 18

var ErrUnknownAsset = errors.New("unknown asset")

type Options struct {
	FollowZoom int
}

// Controller holds at most one selected asset id. It only drives the camera; primitive emphasis is
// applied by the reconciler from Effective.
type Controller struct {
	camera   mapadapter.Adapter
	zoom     int
	selected string
}

func New(camera mapadapter.Adapter, opts Options) *Controller {
	zoom := opts.FollowZoom
	if zoom <= 0 {
		zoom = DefaultFollowZoom
	}
	return &Controller{camera: camera, zoom: zoom}
}

// Select focuses id, replacing any previous selection. The camera follows once per change, and only
// when the asset has a position. Re-selecting the current id changes nothing.
func (c *Controller) Select(id string, assets []fleet.Asset) (bool, error) {
	id = strings.TrimSpace(id)
	a, ok := find(assets, id)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownAsset, id)
	}
	if id == c.selected {
		return false, nil
	}
	c.selected = id
	if a.Positioned && c.camera != nil {
		c.camera.MoveCamera(a.Position, c.zoom)
	}
	return true, nil
}

// Clear drops the selection. The camera stays where it is.
func (c *Controller) Clear() bool {
	if c.selected == "" {
		return false
	}
	c.selected = ""
	return true
}

// Forget clears the selection if it points at id.
func (c *Controller) Forget(id string) bool {
	if c.selected == "" || c.selected != id {
		return false
	}
	c.selected = ""
	return true
}

// Selected returns the raw selection, which may reference an asset that no longer exists.
func (c *Controller) Selected() string { return c.selected }

// Effective returns the selection if it resolves against assets, otherwise "".
func (c *Controller) Effective(assets []fleet.Asset) string {
	if c.selected == "" {
		return ""
	}
	if _, ok := find(assets, c.selected); !ok {
		return ""
	}
	return c.selected
}

func (c *Controller) Zoom() int { return c.zoom }

func find(assets []fleet.Asset, id string) (fleet.Asset, bool) {
	if id == "" {
		return fleet.Asset{}, false
	}
	for _, a := range assets {
		if a.ID == id {
			return a, true
		}
	}
	return fleet.Asset{}, false
}
