// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package asset

import (
	"bytes"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func sampleFile() *File {
	return &File{
		Header: Header{
			Name: "mesh-cull",
			EntryPoints: []EntryPoint{
				{Name: "main", Stage: "compute", Workgroup: [3]uint32{64, 1, 1}},
			},
			Sets: []BindingSet{
				{Set: 0, Bindings: []Binding{
					{Name: "u_sampler", Count: 1, Kind: DescriptorSampler,
						Attributes: []BindingAttribute{AttributeImmutableSampler}},
				}},
				{Set: 1, Bindings: []Binding{
					{Name: "u_view", Count: 1, Kind: DescriptorUniformBuffer, Access: "read",
						Attributes: []BindingAttribute{AttributeStandaloneType}},
					{Name: "u_objects", Count: 1, Kind: DescriptorStorageBuffer, Access: "read"},
					{Name: "u_textures", Count: 1024, Kind: DescriptorSampledImage,
						Attributes: []BindingAttribute{AttributeBindless}},
				}},
			},
			PushSize: 8,
			Spec:     []SpecializationConstant{{Name: "REOCCLUSION", ID: 0, Default: 0}},
		},
		Binary: []byte("@compute @workgroup_size(64)\nfn main() {}\n"),
	}
}

// Round trip: encoding and decoding the header through JSON is the
// identity.
func TestHeaderJSONRoundTrip(t *testing.T) {
	want := sampleFile().Header
	data, err := EncodeHeader(&want)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeHeader(data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(want, got) {
		t.Errorf("round trip changed the header:\n%+v\n%+v", want, got)
	}
}

func TestCombinedRoundTrip(t *testing.T) {
	want := sampleFile()

	var buf bytes.Buffer
	if err := SaveCombined(&buf, want); err != nil {
		t.Fatal(err)
	}
	if string(buf.Bytes()[:8]) != CombinedMagic {
		t.Fatalf("bad magic: %q", buf.Bytes()[:8])
	}

	got, err := LoadCombined(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.Binary, want.Binary) {
		t.Error("payload changed")
	}
	if got.Header.Name != want.Header.Name || len(got.Header.Sets) != 2 {
		t.Errorf("header changed: %+v", got.Header)
	}
	// StandaloneType survives the round trip as opaque metadata.
	if got.Header.Sets[1].Bindings[0].Attributes[0] != AttributeStandaloneType {
		t.Error("standalone-type attribute lost")
	}
}

func TestCombinedBadMagic(t *testing.T) {
	if _, err := LoadCombined(bytes.NewReader([]byte("NOTANAST12345678"))); !errors.Is(err, ErrWrongFormat) {
		t.Errorf("err = %v, want ErrWrongFormat", err)
	}
}

func TestSeparateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	headerPath := filepath.Join(dir, "mesh-cull.shader")

	want := sampleFile()
	if err := SaveSeparate(headerPath, want); err != nil {
		t.Fatal(err)
	}
	got, err := LoadSeparate(headerPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.Binary, want.Binary) {
		t.Error("payload changed")
	}
	if got.Header.BinaryFile != "mesh-cull.bin" {
		t.Errorf("binary path = %q", got.Header.BinaryFile)
	}
}

func TestValidateMatchingPayload(t *testing.T) {
	if err := Validate(sampleFile()); err != nil {
		t.Errorf("Validate = %v", err)
	}
}

func TestValidateMismatches(t *testing.T) {
	missing := sampleFile()
	missing.Header.EntryPoints[0].Name = "not_there"
	if err := Validate(missing); !errors.Is(err, ErrBindingMismatch) {
		t.Errorf("missing entry point: err = %v, want ErrBindingMismatch", err)
	}

	wrongStage := sampleFile()
	wrongStage.Header.EntryPoints[0].Stage = "fragment"
	if err := Validate(wrongStage); !errors.Is(err, ErrBindingMismatch) {
		t.Errorf("wrong stage: err = %v, want ErrBindingMismatch", err)
	}

	wrongGroup := sampleFile()
	wrongGroup.Header.EntryPoints[0].Workgroup = [3]uint32{32, 1, 1}
	if err := Validate(wrongGroup); !errors.Is(err, ErrBindingMismatch) {
		t.Errorf("wrong workgroup: err = %v, want ErrBindingMismatch", err)
	}

	garbage := sampleFile()
	garbage.Binary = []byte("this is not wgsl {")
	if err := Validate(garbage); !errors.Is(err, ErrWrongFormat) {
		t.Errorf("garbage payload: err = %v, want ErrWrongFormat", err)
	}
}
