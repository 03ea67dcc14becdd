// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package types

import "github.com/go-gl/mathgl/mgl32"

// View flag bits of ViewInfo.Flags.
const (
	ViewFlagOrthographic uint32 = 1 << 0
	ViewFlagClampDepth   uint32 = 1 << 1
)

// FrustumPlanes holds the six clip planes of a view frustum in world space,
// as (normal, distance) with normals pointing inward.
// Order: left, right, bottom, top, near, far.
type FrustumPlanes struct {
	Planes [6]mgl32.Vec4
}

// ExtractFrustum builds the planes from a view-projection matrix
// (Gribb-Hartmann).
func ExtractFrustum(viewProj mgl32.Mat4) FrustumPlanes {
	row := func(i int) mgl32.Vec4 {
		return mgl32.Vec4{viewProj.At(i, 0), viewProj.At(i, 1), viewProj.At(i, 2), viewProj.At(i, 3)}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	var f FrustumPlanes
	f.Planes[0] = normalizePlane(r3.Add(r0))  // left
	f.Planes[1] = normalizePlane(r3.Sub(r0))  // right
	f.Planes[2] = normalizePlane(r3.Add(r1))  // bottom
	f.Planes[3] = normalizePlane(r3.Sub(r1))  // top
	f.Planes[4] = normalizePlane(r3.Add(r2))  // near
	f.Planes[5] = normalizePlane(r3.Sub(r2))  // far
	return f
}

func normalizePlane(p mgl32.Vec4) mgl32.Vec4 {
	n := mgl32.Vec3{p.X(), p.Y(), p.Z()}
	l := n.Len()
	if l == 0 {
		return p
	}
	return p.Mul(1 / l)
}

// IntersectsSphere tests a world-space bounding sphere against the frustum.
//
// The perspective path rejects on a strictly smaller signed distance, the
// orthographic path on smaller-or-equal, mirroring the culling shaders.
func (f *FrustumPlanes) IntersectsSphere(center mgl32.Vec3, radius float32, orthographic bool) bool {
	for _, p := range f.Planes {
		d := p.X()*center.X() + p.Y()*center.Y() + p.Z()*center.Z() + p.W()
		if orthographic {
			if d <= -radius {
				return false
			}
		} else {
			if d < -radius {
				return false
			}
		}
	}
	return true
}

// ProjectionData carries the projection terms the occlusion shaders need to
// project bounding spheres to screen space.
type ProjectionData struct {
	// P00 and P11 are the x and y scale terms of the projection matrix.
	P00 float32
	P11 float32

	Near float32
	Far  float32
}

// ViewInfo is the GPU-facing description of one view, uploaded to the cull
// shaders as-is.
type ViewInfo struct {
	View           mgl32.Mat4
	Projection     mgl32.Mat4
	ViewProjection mgl32.Mat4

	Frustum    FrustumPlanes
	ProjectionTerms ProjectionData

	Resolution    [2]float32
	HiZResolution [2]float32

	Flags uint32
}

// IsOrthographic reports whether the view projects orthographically.
func (v *ViewInfo) IsOrthographic() bool {
	return v.Flags&ViewFlagOrthographic != 0
}
