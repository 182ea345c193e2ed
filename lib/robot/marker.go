// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

package robot

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
)

// Marker is one fiducial marker in a camera frame.
type Marker struct {
	ID int `json:"id"`

	// Size is the marker's physical size in metres.
	Size []float64 `json:"size"`

	Certainty float64 `json:"certainty"`

	// PixelCorners are the marker's corners in image coordinates, in
	// the order the camera reports them.
	PixelCorners [][2]float64 `json:"pixel_corners"`
	PixelCentre  [2]float64   `json:"pixel_centre"`

	// Polar is the marker's position relative to the camera.
	Polar Polar `json:"polar"`
}

// Distance returns Polar.DistanceMetres.
func (m Marker) Distance() float64 { return m.Polar.DistanceMetres }

// Polar is a position in the camera's polar coordinate system. On the
// wire it is the pair [[rot_x, rot_y, rot_z], distance].
type Polar struct {
	// Rotation holds the x, y and z rotations in radians.
	Rotation       [3]float64
	DistanceMetres float64
}

// MarshalJSON encodes the wire pair.
func (p Polar) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.Rotation, p.DistanceMetres})
}

// UnmarshalJSON decodes the wire pair.
func (p *Polar) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("polar coordinate: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("polar coordinate has %d elements, want 2", len(pair))
	}
	var decoded Polar
	if err := json.Unmarshal(pair[0], &decoded.Rotation); err != nil {
		return fmt.Errorf("polar rotation: %w", err)
	}
	if err := json.Unmarshal(pair[1], &decoded.DistanceMetres); err != nil {
		return fmt.Errorf("polar distance: %w", err)
	}
	*p = decoded
	return nil
}

// sortByDistance orders markers nearest first. Ties keep camera order.
func sortByDistance(markers []Marker) {
	slices.SortStableFunc(markers, func(a, b Marker) int {
		return cmp.Compare(a.Distance(), b.Distance())
	})
}
