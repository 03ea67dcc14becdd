// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package asset reads and writes baked shader assets: a JSON header
// describing entry points, binding sets, push constants, and input
// attributes, plus the shader payload itself. Assets are stored either as
// separate header and binary files, or combined into one file behind the
// ASSETBFF magic.
package asset

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CombinedMagic opens a combined asset file.
const CombinedMagic = "ASSETBFF"

// Version is the current asset file version.
const Version uint32 = 1

// Errors of the asset loader.
var (
	// ErrWrongFormat is returned for unparseable or mismatched files.
	ErrWrongFormat = errors.New("asset: wrong format")

	// ErrBindingMismatch is returned when the payload's reflected bindings
	// disagree with the header. Fatal for the frame that loaded the shader.
	ErrBindingMismatch = errors.New("asset: shader binding mismatch")
)

// DescriptorKind names a binding's descriptor type in the header.
type DescriptorKind string

// Descriptor kinds.
const (
	DescriptorUniformBuffer DescriptorKind = "uniform-buffer"
	DescriptorStorageBuffer DescriptorKind = "storage-buffer"
	DescriptorSampledImage  DescriptorKind = "sampled-image"
	DescriptorStorageImage  DescriptorKind = "storage-image"
	DescriptorSampler       DescriptorKind = "sampler"
)

// BindingAttribute annotates a binding.
type BindingAttribute string

// Binding attributes.
const (
	// AttributeBindless marks a runtime-sized descriptor array.
	AttributeBindless BindingAttribute = "bindless"

	// AttributeImmutableSampler bakes the sampler into the layout.
	AttributeImmutableSampler BindingAttribute = "immutable-sampler"

	// AttributeImmutableSamplerNearest is the nearest-filter variant.
	AttributeImmutableSamplerNearest BindingAttribute = "immutable-sampler-nearest"

	// AttributeStandaloneType asks the offline reflection generator to emit
	// the binding's uniform type as a standalone host type. The runtime
	// treats it as opaque metadata and preserves it through round-trips.
	AttributeStandaloneType BindingAttribute = "standalone-type"
)

// Binding is one slot of a binding set.
type Binding struct {
	Name       string             `json:"name"`
	Count      uint32             `json:"count"`
	Kind       DescriptorKind     `json:"descriptorType"`
	Access     string             `json:"access,omitempty"`
	Attributes []BindingAttribute `json:"attributes,omitempty"`
}

// BindingSet is one ordered descriptor set of the shader.
type BindingSet struct {
	Set      uint32    `json:"set"`
	Bindings []Binding `json:"bindings"`
}

// EntryPoint describes one shader entry function.
type EntryPoint struct {
	Name      string    `json:"name"`
	Stage     string    `json:"stage"`
	Workgroup [3]uint32 `json:"workgroup,omitempty"`
}

// SpecializationConstant is one compile-time override.
type SpecializationConstant struct {
	Name    string `json:"name"`
	ID      uint32 `json:"id"`
	Default uint32 `json:"default"`
}

// InputAttribute is one vertex input of the shader.
type InputAttribute struct {
	Name     string `json:"name"`
	Location uint32 `json:"location"`
	Format   string `json:"format"`
}

// Header is the JSON-encoded description of a baked shader.
type Header struct {
	Name        string                   `json:"name"`
	EntryPoints []EntryPoint             `json:"entryPoints"`
	Sets        []BindingSet             `json:"bindingSets,omitempty"`
	PushSize    uint32                   `json:"pushConstantSize,omitempty"`
	Spec        []SpecializationConstant `json:"specializationConstants,omitempty"`
	Inputs      []InputAttribute         `json:"inputAttributes,omitempty"`

	// BinaryFile is the payload path of separate-form assets, relative to
	// the header file.
	BinaryFile string `json:"binaryFile,omitempty"`

	// BinarySize is the payload size in bytes.
	BinarySize uint64 `json:"binarySize"`
}

// File is a loaded asset: header plus payload.
type File struct {
	Header Header
	Binary []byte
}

// EncodeHeader serializes the header to its canonical JSON form.
func EncodeHeader(h *Header) ([]byte, error) {
	return json.MarshalIndent(h, "", "  ")
}

// DecodeHeader parses a header from JSON.
func DecodeHeader(data []byte) (Header, error) {
	var h Header
	if err := json.Unmarshal(data, &h); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrWrongFormat, err)
	}
	return h, nil
}

// SaveSeparate writes headerPath and the payload file the header names.
// An empty Header.BinaryFile defaults to the header name with a .bin
// extension.
func SaveSeparate(headerPath string, file *File) error {
	h := file.Header
	if h.BinaryFile == "" {
		h.BinaryFile = trimExt(filepath.Base(headerPath)) + ".bin"
	}
	h.BinarySize = uint64(len(file.Binary))

	data, err := EncodeHeader(&h)
	if err != nil {
		return err
	}
	if err := os.WriteFile(headerPath, data, 0o644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(filepath.Dir(headerPath), h.BinaryFile), file.Binary, 0o644)
}

// LoadSeparate reads a separate-form asset from its header path.
func LoadSeparate(headerPath string) (*File, error) {
	data, err := os.ReadFile(headerPath)
	if err != nil {
		return nil, err
	}
	h, err := DecodeHeader(data)
	if err != nil {
		return nil, err
	}
	bin, err := os.ReadFile(filepath.Join(filepath.Dir(headerPath), h.BinaryFile))
	if err != nil {
		return nil, err
	}
	if h.BinarySize != 0 && h.BinarySize != uint64(len(bin)) {
		return nil, fmt.Errorf("%w: binary size %d, header says %d", ErrWrongFormat, len(bin), h.BinarySize)
	}
	return &File{Header: h, Binary: bin}, nil
}

// SaveCombined writes the one-file form:
// magic, version, header size, binary size, header JSON, payload.
func SaveCombined(w io.Writer, file *File) error {
	h := file.Header
	h.BinaryFile = ""
	h.BinarySize = uint64(len(file.Binary))
	header, err := EncodeHeader(&h)
	if err != nil {
		return err
	}

	if _, err := w.Write([]byte(CombinedMagic)); err != nil {
		return err
	}
	for _, v := range []uint32{Version, uint32(len(header)), uint32(len(file.Binary))} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err = w.Write(file.Binary)
	return err
}

// LoadCombined reads the one-file form.
func LoadCombined(r io.Reader) (*File, error) {
	magic := make([]byte, len(CombinedMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, err
	}
	if !bytes.Equal(magic, []byte(CombinedMagic)) {
		return nil, fmt.Errorf("%w: bad magic %q", ErrWrongFormat, magic)
	}

	var version, headerSize, binarySize uint32
	for _, dst := range []*uint32{&version, &headerSize, &binarySize} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return nil, err
		}
	}
	if version != Version {
		return nil, fmt.Errorf("%w: version %d", ErrWrongFormat, version)
	}

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	h, err := DecodeHeader(header)
	if err != nil {
		return nil, err
	}

	bin := make([]byte, binarySize)
	if _, err := io.ReadFull(r, bin); err != nil {
		return nil, err
	}
	return &File{Header: h, Binary: bin}, nil
}

// SaveCombinedFile writes the combined form to path.
func SaveCombinedFile(path string, file *File) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return SaveCombined(f, file)
}

// LoadCombinedFile reads the combined form from path.
func LoadCombinedFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadCombined(f)
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}
