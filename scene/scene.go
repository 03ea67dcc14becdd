// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package scene

import (
	"bytes"
	"encoding/binary"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/rendercore/device"
	"github.com/gogpu/rendercore/hal"
	"github.com/gogpu/rendercore/types"
)

// TrianglesPerMeshlet is the triangle capacity of one meshlet.
const TrianglesPerMeshlet = 64

// BoundingSphere is a world- or object-space bounding volume.
type BoundingSphere struct {
	Center mgl32.Vec3
	Radius float32
}

// Meshlet is one mesh partition with its culling data.
type Meshlet struct {
	Sphere BoundingSphere

	// ConeAxis and ConeCutoff describe the backface cone.
	ConeAxis   mgl32.Vec3
	ConeCutoff float32

	FirstIndex uint32
	IndexCount uint32
	Vertex     uint32
}

// RenderObject is one drawable instance.
type RenderObject struct {
	Transform mgl32.Mat4
	Sphere    BoundingSphere

	FirstMeshlet uint32
	MeshletCount uint32

	Material uint32

	// Buckets is the bitmask of object-set buckets the object belongs to.
	Buckets uint64
}

// NodeKind tags a hierarchy node.
type NodeKind uint8

// Node kinds.
const (
	NodeMesh NodeKind = iota
	NodeLight
	NodeDummy
)

// Node is one flat-hierarchy entry. Parent indices always point to earlier
// entries, so a single forward walk resolves world transforms.
type Node struct {
	Local  mgl32.Mat4
	Kind   NodeKind
	Parent int32 // -1 for roots

	// Object is the render-object index for NodeMesh nodes.
	Object uint32
}

// Info is an immutable scene template: geometry streams, meshlets,
// materials, render objects, and the node hierarchy.
type Info struct {
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	Tangents  []mgl32.Vec4
	UVs       []mgl32.Vec2
	Indices   []uint32

	Meshlets []Meshlet
	Objects  []RenderObject
	Nodes    []Node

	Materials []Material
}

// Material is the GPU-facing material record; texture fields are bindless
// ring slots.
type Material struct {
	BaseColor   [4]float32
	AlbedoSlot  uint32
	NormalSlot  uint32
	Metallic    float32
	Roughness   float32
}

// Scene instantiates one or more Infos into GPU arenas and owns the flat
// hierarchy of everything added.
type Scene struct {
	dev *device.Context

	attributes *device.BufferArena
	indices    *device.BufferArena
	meshlets   *device.BufferArena
	commands   *device.BufferArena
	materials  *device.BufferArena
	objects    *device.BufferArena

	allObjects  []RenderObject
	allMeshlets []Meshlet
	nodes       []Node
	worlds      []mgl32.Mat4

	dirty bool
}

// Initial sizes of the scene arenas; they grow on demand.
const (
	attributeArenaSize = 4 << 20
	indexArenaSize     = 2 << 20
	meshletArenaSize   = 1 << 20
	commandArenaSize   = 1 << 20
	materialArenaSize  = 256 << 10
	objectArenaSize    = 1 << 20
)

// New creates an empty scene with its arenas.
func New(dev *device.Context) (*Scene, error) {
	s := &Scene{dev: dev}

	var err error
	mk := func(label string, size uint64, usage types.BufferUsage) *device.BufferArena {
		if err != nil {
			return nil
		}
		var a *device.BufferArena
		a, err = device.NewBufferArena(dev, label, size, 0, usage)
		return a
	}
	s.attributes = mk("scene.attributes", attributeArenaSize, types.BufferUsageStorage)
	s.indices = mk("scene.indices", indexArenaSize, types.BufferUsageStorage|types.BufferUsageIndex)
	s.meshlets = mk("scene.meshlets", meshletArenaSize, types.BufferUsageStorage)
	s.commands = mk("scene.commands", commandArenaSize, types.BufferUsageStorage|types.BufferUsageIndirect)
	s.materials = mk("scene.materials", materialArenaSize, types.BufferUsageStorage)
	s.objects = mk("scene.objects", objectArenaSize, types.BufferUsageStorage)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Add instantiates info into the scene's arenas. The returned base is the
// index of the first added render object.
func (s *Scene) Add(info *Info, cmd hal.CommandEncoder) (uint32, error) {
	base := uint32(len(s.allObjects))
	meshletBase := uint32(len(s.allMeshlets))

	up := s.dev.Uploader()
	type upload struct {
		arena *device.BufferArena
		data  []byte
		align uint64
	}
	uploads := []upload{
		{s.attributes, encode(info.Positions), 16},
		{s.attributes, encode(info.Normals), 16},
		{s.attributes, encode(info.Tangents), 16},
		{s.attributes, encode(info.UVs), 8},
		{s.indices, encode(info.Indices), 4},
		{s.materials, encode(info.Materials), 16},
	}
	for _, u := range uploads {
		if len(u.data) == 0 {
			continue
		}
		span, err := u.arena.Suballocate(uint64(len(u.data)), u.align, cmd)
		if err != nil {
			return 0, err
		}
		if err := up.UpdateBuffer(u.arena.Buffer(), u.data, span.Offset); err != nil {
			return 0, err
		}
	}

	// Meshlets and objects are rebased so indices stay valid across
	// multiple Add calls.
	meshlets := make([]Meshlet, len(info.Meshlets))
	copy(meshlets, info.Meshlets)
	s.allMeshlets = append(s.allMeshlets, meshlets...)

	nodeBase := int32(len(s.nodes))
	for _, n := range info.Nodes {
		if n.Parent >= 0 {
			n.Parent += nodeBase
		}
		if n.Kind == NodeMesh {
			n.Object += base
		}
		s.nodes = append(s.nodes, n)
	}

	for _, o := range info.Objects {
		o.FirstMeshlet += meshletBase
		s.allObjects = append(s.allObjects, o)
	}

	mspan, err := s.meshlets.Suballocate(uint64(len(encode(meshlets))), 16, cmd)
	if err != nil {
		return 0, err
	}
	if err := up.UpdateBuffer(s.meshlets.Buffer(), encode(meshlets), mspan.Offset); err != nil {
		return 0, err
	}

	s.dirty = true
	return base, nil
}

// Update resolves world transforms and re-uploads the render-object arena
// when anything changed since the last call.
func (s *Scene) Update(cmd hal.CommandEncoder) error {
	if !s.dirty {
		return nil
	}
	s.resolveHierarchy()

	data := encode(s.allObjects)
	if uint64(len(data)) > s.objects.Used() {
		s.objects.Reset()
		if _, err := s.objects.Suballocate(uint64(len(data)), 16, cmd); err != nil {
			return err
		}
	}
	if err := s.dev.Uploader().UpdateBuffer(s.objects.Buffer(), data, 0); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// resolveHierarchy walks the flat node list, composing parent transforms
// and pushing the results into mesh nodes' render objects.
func (s *Scene) resolveHierarchy() {
	if cap(s.worlds) < len(s.nodes) {
		s.worlds = make([]mgl32.Mat4, len(s.nodes))
	}
	s.worlds = s.worlds[:len(s.nodes)]

	for i, n := range s.nodes {
		world := n.Local
		if n.Parent >= 0 {
			world = s.worlds[n.Parent].Mul4(n.Local)
		}
		s.worlds[i] = world
		if n.Kind == NodeMesh && int(n.Object) < len(s.allObjects) {
			obj := &s.allObjects[n.Object]
			obj.Transform = world
			// The bounding sphere follows the translation; radius scaling
			// assumes uniform scale.
			c := world.Mul4x1(mgl32.Vec4{0, 0, 0, 1})
			obj.Sphere.Center = mgl32.Vec3{c.X(), c.Y(), c.Z()}
		}
	}
}

// Objects returns the instantiated render objects.
func (s *Scene) Objects() []RenderObject { return s.allObjects }

// Meshlets returns the instantiated meshlets.
func (s *Scene) Meshlets() []Meshlet { return s.allMeshlets }

// Nodes returns the flat hierarchy.
func (s *Scene) Nodes() []Node { return s.nodes }

// WorldTransform returns the resolved world matrix of a node.
func (s *Scene) WorldTransform(node int) mgl32.Mat4 { return s.worlds[node] }

// ObjectsBuffer returns the render-object arena buffer.
func (s *Scene) ObjectsBuffer() *device.BufferArena { return s.objects }

// MeshletsBuffer returns the meshlet arena buffer.
func (s *Scene) MeshletsBuffer() *device.BufferArena { return s.meshlets }

// CommandsBuffer returns the per-meshlet draw-command arena buffer.
func (s *Scene) CommandsBuffer() *device.BufferArena { return s.commands }

// AttributesBuffer returns the vertex-attribute arena buffer.
func (s *Scene) AttributesBuffer() *device.BufferArena { return s.attributes }

// IndicesBuffer returns the index arena buffer.
func (s *Scene) IndicesBuffer() *device.BufferArena { return s.indices }

// MaterialsBuffer returns the material arena buffer.
func (s *Scene) MaterialsBuffer() *device.BufferArena { return s.materials }

// Destroy retires the arenas.
func (s *Scene) Destroy() {
	for _, a := range []*device.BufferArena{s.attributes, s.indices, s.meshlets, s.commands, s.materials, s.objects} {
		a.Destroy()
	}
}

// encode serializes a fixed-layout slice for upload.
func encode[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, data)
	return buf.Bytes()
}
