// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/rendercore/core"
	"github.com/gogpu/rendercore/device"
	"github.com/gogpu/rendercore/hal"
	"github.com/gogpu/rendercore/types"
)

// VisibilityFlags configure how a view culls.
type VisibilityFlags uint32

// Visibility flags.
const (
	// VisibilityClampDepth clamps depth instead of clipping at the far
	// plane (shadow views).
	VisibilityClampDepth VisibilityFlags = 1 << 0

	// VisibilityOcclusionCull enables the Hi-Z occlusion test for the view.
	VisibilityOcclusionCull VisibilityFlags = 1 << 1

	// VisibilityPrimary marks the main camera view.
	VisibilityPrimary VisibilityFlags = 1 << 2
)

// Has reports whether all flags in other are set.
func (f VisibilityFlags) Has(other VisibilityFlags) bool { return f&other == other }

// View is one culled viewpoint of a scene.
type View struct {
	Camera     *Camera
	Resolution [2]uint32
	Flags      VisibilityFlags
}

// Info assembles the GPU-facing view description.
func (v *View) Info(hizResolution [2]uint32) types.ViewInfo {
	return v.Camera.ViewInfo(v.Resolution, hizResolution, v.Flags.Has(VisibilityClampDepth))
}

// MaxViews bounds the views of one multiview visibility.
const MaxViews = 64

// VisibilityHandle indexes a view inside a MultiviewVisibility.
type VisibilityHandle uint32

// InvalidVisibility is the all-ones sentinel AddView returns on failure.
const InvalidVisibility = VisibilityHandle(^uint32(0))

// viewVisibility is the per-view persistent state.
type viewVisibility struct {
	view    View
	objects core.BufferHandle
	meshlets core.BufferHandle
}

// MultiviewVisibility owns up to MaxViews per-view persistent visibility
// buffers over one render-object set. The buffers hold one bit per
// (object, view) and (meshlet, view); they are written only by the cull and
// reocclusion passes of their view and are never cleared implicitly, so
// last-frame visibility survives into the next frame's first cull phase.
type MultiviewVisibility struct {
	dev *device.Context
	set *RenderObjectSet

	views []viewVisibility
}

// NewMultiviewVisibility creates an empty multiview visibility over set.
func NewMultiviewVisibility(dev *device.Context, set *RenderObjectSet) *MultiviewVisibility {
	return &MultiviewVisibility{dev: dev, set: set}
}

// Set returns the observed object set.
func (m *MultiviewVisibility) Set() *RenderObjectSet { return m.set }

// ViewCount returns the number of attached views.
func (m *MultiviewVisibility) ViewCount() int { return len(m.views) }

// AddView attaches a view, allocating its persistent visibility buffers.
// The MaxViews+1-th view is rejected with hal.ErrUnsupported.
func (m *MultiviewVisibility) AddView(view View) (VisibilityHandle, error) {
	if len(m.views) >= MaxViews {
		return InvalidVisibility, hal.ErrUnsupported
	}

	objWords := (uint64(m.set.ObjectCount()) + 63) / 64
	meshletWords := (uint64(m.set.MeshletCount()) + 63) / 64

	objects, err := m.dev.CreateBuffer(types.BufferDescriptor{
		Label: "visibility.objects",
		Size:  max(objWords*8, 8),
		Usage: types.BufferUsageStorage | types.BufferUsageDestination | types.BufferUsageSource | types.BufferUsageMappableRandomAccess,
	})
	if err != nil {
		return InvalidVisibility, err
	}
	meshlets, err := m.dev.CreateBuffer(types.BufferDescriptor{
		Label: "visibility.meshlets",
		Size:  max(meshletWords*8, 8),
		Usage: types.BufferUsageStorage | types.BufferUsageDestination | types.BufferUsageSource | types.BufferUsageMappableRandomAccess,
	})
	if err != nil {
		return InvalidVisibility, err
	}

	m.views = append(m.views, viewVisibility{view: view, objects: objects, meshlets: meshlets})
	return VisibilityHandle(len(m.views) - 1), nil
}

// View returns the attached view of h.
func (m *MultiviewVisibility) View(h VisibilityHandle) *View { return &m.views[h].view }

// ObjectVisibility returns the per-object visibility bit buffer of h.
func (m *MultiviewVisibility) ObjectVisibility(h VisibilityHandle) core.BufferHandle {
	return m.views[h].objects
}

// MeshletVisibility returns the per-meshlet visibility bit buffer of h.
func (m *MultiviewVisibility) MeshletVisibility(h VisibilityHandle) core.BufferHandle {
	return m.views[h].meshlets
}

// OnUpdate grows the visibility buffers when the set grew. Contents are
// managed entirely by the GPU; growth preserves the old bits.
func (m *MultiviewVisibility) OnUpdate(cmd hal.CommandEncoder) error {
	objWords := (uint64(m.set.ObjectCount()) + 63) / 64
	meshletWords := (uint64(m.set.MeshletCount()) + 63) / 64
	for i := range m.views {
		if err := m.dev.ResizeBuffer(m.views[i].objects, max(objWords*8, 8), cmd); err != nil {
			return err
		}
		if err := m.dev.ResizeBuffer(m.views[i].meshlets, max(meshletWords*8, 8), cmd); err != nil {
			return err
		}
	}
	return nil
}

// Destroy retires the visibility buffers.
func (m *MultiviewVisibility) Destroy() {
	for i := range m.views {
		m.dev.RetireBuffer(m.views[i].objects)
		m.dev.RetireBuffer(m.views[i].meshlets)
	}
	m.views = nil
}

// CullObjectsReference runs the CPU frustum culler over the set for one
// view, returning one bit per object. It mirrors the GPU render-object
// cull's frustum test (occlusion excluded) and backs the visibility tests.
func (m *MultiviewVisibility) CullObjectsReference(h VisibilityHandle) []uint64 {
	view := m.views[h].view
	info := view.Info([2]uint32{1, 1})

	words := make([]uint64, (m.set.ObjectCount()+63)/64)
	for oi, obj := range m.set.Scene().Objects() {
		center := mgl32.Vec3{obj.Sphere.Center.X(), obj.Sphere.Center.Y(), obj.Sphere.Center.Z()}
		if info.Frustum.IntersectsSphere(center, obj.Sphere.Radius, view.Camera.IsOrthographic()) {
			words[oi/64] |= 1 << (uint(oi) % 64)
		}
	}
	return words
}

// VisibleMeshletCountReference sums the meshlet counts of the objects whose
// bits are set.
func (m *MultiviewVisibility) VisibleMeshletCountReference(bits []uint64) uint32 {
	var count uint32
	for oi, obj := range m.set.Scene().Objects() {
		if oi/64 < len(bits) && bits[oi/64]&(1<<(uint(oi)%64)) != 0 {
			count += obj.MeshletCount
		}
	}
	return count
}
