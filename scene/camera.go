// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/rendercore/types"
)

// Camera produces the view and projection matrices of one viewpoint.
type Camera struct {
	position    mgl32.Vec3
	orientation mgl32.Quat

	fovY   float32
	aspect float32
	near   float32
	far    float32

	orthographic bool
	orthoHalf    mgl32.Vec2

	view     mgl32.Mat4
	proj     mgl32.Mat4
	viewProj mgl32.Mat4
	dirty    bool
}

// NewPerspectiveCamera creates a perspective camera.
func NewPerspectiveCamera(position mgl32.Vec3, fovY, aspect, near, far float32) *Camera {
	c := &Camera{
		position:    position,
		orientation: mgl32.QuatIdent(),
		fovY:        fovY,
		aspect:      aspect,
		near:        near,
		far:         far,
		dirty:       true,
	}
	c.update()
	return c
}

// NewOrthographicCamera creates an orthographic camera with the given half
// extents.
func NewOrthographicCamera(position mgl32.Vec3, halfWidth, halfHeight, near, far float32) *Camera {
	c := &Camera{
		position:     position,
		orientation:  mgl32.QuatIdent(),
		near:         near,
		far:          far,
		orthographic: true,
		orthoHalf:    mgl32.Vec2{halfWidth, halfHeight},
		dirty:        true,
	}
	c.update()
	return c
}

// SetPosition moves the camera.
func (c *Camera) SetPosition(p mgl32.Vec3) {
	c.position = p
	c.dirty = true
}

// SetOrientation rotates the camera.
func (c *Camera) SetOrientation(q mgl32.Quat) {
	c.orientation = q
	c.dirty = true
}

// Position returns the camera position.
func (c *Camera) Position() mgl32.Vec3 { return c.position }

// IsOrthographic reports the projection kind.
func (c *Camera) IsOrthographic() bool { return c.orthographic }

// View returns the view matrix.
func (c *Camera) View() mgl32.Mat4 {
	c.update()
	return c.view
}

// Projection returns the projection matrix.
func (c *Camera) Projection() mgl32.Mat4 {
	c.update()
	return c.proj
}

// ViewProjection returns projection * view.
func (c *Camera) ViewProjection() mgl32.Mat4 {
	c.update()
	return c.viewProj
}

func (c *Camera) update() {
	if !c.dirty {
		return
	}
	rot := c.orientation.Mat4()
	c.view = rot.Transpose().Mul4(mgl32.Translate3D(-c.position.X(), -c.position.Y(), -c.position.Z()))
	if c.orthographic {
		c.proj = mgl32.Ortho(-c.orthoHalf.X(), c.orthoHalf.X(), -c.orthoHalf.Y(), c.orthoHalf.Y(), c.near, c.far)
	} else {
		c.proj = mgl32.Perspective(c.fovY, c.aspect, c.near, c.far)
	}
	c.viewProj = c.proj.Mul4(c.view)
	c.dirty = false
}

// ViewInfo assembles the GPU-facing description of the camera over the
// given target resolution.
func (c *Camera) ViewInfo(resolution [2]uint32, hizResolution [2]uint32, clampDepth bool) types.ViewInfo {
	c.update()
	info := types.ViewInfo{
		View:           c.view,
		Projection:     c.proj,
		ViewProjection: c.viewProj,
		Frustum:        types.ExtractFrustum(c.viewProj),
		ProjectionTerms: types.ProjectionData{
			P00:  c.proj.At(0, 0),
			P11:  c.proj.At(1, 1),
			Near: c.near,
			Far:  c.far,
		},
		Resolution:    [2]float32{float32(resolution[0]), float32(resolution[1])},
		HiZResolution: [2]float32{float32(hizResolution[0]), float32(hizResolution[1])},
	}
	if c.orthographic {
		info.Flags |= types.ViewFlagOrthographic
	}
	if clampDepth {
		info.Flags |= types.ViewFlagClampDepth
	}
	return info
}
