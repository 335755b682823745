package iconhd

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Model is the numeric model code of a dive computer, as reported in the
// device info event.
type Model uint32

const (
	ModelMatrix     Model = 0x0F
	ModelSmart      Model = 0x000010
	ModelSmartApnea Model = 0x010010
	ModelIconHD     Model = 0x14
	ModelIconHDNet  Model = 0x15
	ModelPuckPro    Model = 0x18
	ModelNemoWide2  Model = 0x19
	ModelPuck2      Model = 0x1F
	ModelQuadAir    Model = 0x23
	ModelSmartAir   Model = 0x24
	ModelQuad       Model = 0x29
)

// Dive modes stored in the two low bits of the dive type field.
const (
	modeAir      uint16 = 0
	modeGauge    uint16 = 1
	modeNitrox   uint16 = 2
	modeFreedive uint16 = 3
)

// The product name field of the version block.
const (
	productNameOffset = 0x46
	productNameLen    = 16
)

// modelDirectory maps the product name reported by the device to its model
// code. Names are compared over the full 16 byte field, so "Quad" cannot
// shadow "Quad Air".
var modelDirectory = []struct {
	name  string
	model Model
}{
	{"Matrix", ModelMatrix},
	{"Smart", ModelSmart},
	{"Smart Apnea", ModelSmartApnea},
	{"Icon HD", ModelIconHD},
	{"Icon AIR", ModelIconHDNet},
	{"Puck Pro", ModelPuckPro},
	{"Nemo Wide 2", ModelNemoWide2},
	{"Puck 2", ModelPuck2},
	{"Quad Air", ModelQuadAir},
	{"Smart Air", ModelSmartAir},
	{"Quad", ModelQuad},
}

// matchModel returns the model code for a version block, or zero when the
// product name is not recognized. Unknown models are treated as the most
// capable variant downstream.
func matchModel(version []byte) Model {
	field := version[productNameOffset : productNameOffset+productNameLen]

	for _, entry := range modelDirectory {
		var name [productNameLen]byte
		copy(name[:], entry.name)

		if bytes.Equal(field, name[:]) {
			return entry.model
		}
	}

	return 0
}

// String returns the product name of the model.
func (m Model) String() string {
	for _, entry := range modelDirectory {
		if entry.model == m {
			return entry.name
		}
	}

	return fmt.Sprintf("unknown (0x%02X)", uint32(m))
}

// layout describes the memory geometry of a model: the total memory size and
// the boundaries of the profile ring buffer.
type layout struct {
	memsize        uint32
	rbProfileBegin uint32
	rbProfileEnd   uint32
}

var (
	layoutIconHD    = &layout{memsize: 0x100000, rbProfileBegin: 0x00A000, rbProfileEnd: 0x100000}
	layoutIconHDNet = &layout{memsize: 0x100000, rbProfileBegin: 0x00E000, rbProfileEnd: 0x100000}
	layoutMatrix    = &layout{memsize: 0x40000, rbProfileBegin: 0x0A000, rbProfileEnd: 0x3E000}
	layoutNemoWide2 = &layout{memsize: 0x40000, rbProfileBegin: 0x0A000, rbProfileEnd: 0x40000}
)

// geometry returns the memory layout and the read packet size of a model.
func (m Model) geometry() (*layout, int) {
	switch m {
	case ModelMatrix:
		return layoutMatrix, 256
	case ModelPuckPro, ModelPuck2, ModelNemoWide2, ModelSmart, ModelSmartApnea, ModelQuad:
		return layoutNemoWide2, 256
	case ModelQuadAir, ModelSmartAir:
		return layoutIconHDNet, 256
	case ModelIconHDNet:
		return layoutIconHDNet, 4096
	default:
		return layoutIconHD, 4096
	}
}

// headerPrefix returns the size of the trailing header region that carries the
// dive type and sample count, which is all that must be read before the shape
// of the record is known.
func (m Model) headerPrefix() int {
	switch m {
	case ModelIconHDNet:
		return 0x80
	case ModelQuadAir:
		return 0x84
	case ModelSmart, ModelSmartAir:
		return 4 // type and number of samples only
	case ModelSmartApnea:
		return 6 // type and number of samples only
	default:
		return 0x5C
	}
}

// prefixFields decodes the dive type and sample count from the first four
// bytes of a header prefix. The Smart family stores the sample count before
// the type; all other models store the type first.
func (m Model) prefixFields(prefix []byte) (divetype, nsamples uint16) {
	switch m {
	case ModelSmart, ModelSmartApnea, ModelSmartAir:
		return binary.LittleEndian.Uint16(prefix[2:4]), binary.LittleEndian.Uint16(prefix[0:2])
	default:
		return binary.LittleEndian.Uint16(prefix[0:2]), binary.LittleEndian.Uint16(prefix[2:4])
	}
}

// recordShape describes the layout of a dive record: the full header size, the
// size of one profile sample, and the offset of the fingerprint within the
// header.
type recordShape struct {
	headerSize  int
	sampleSize  int
	fingerprint int
}

// shape returns the record shape for a dive mode. Only the Smart uses a
// different shape per mode, for its freedive records.
func (m Model) shape(mode uint16) recordShape {
	switch m {
	case ModelIconHDNet:
		return recordShape{headerSize: 0x80, sampleSize: 12, fingerprint: 6}
	case ModelQuadAir:
		return recordShape{headerSize: 0x84, sampleSize: 12, fingerprint: 6}
	case ModelSmart:
		if mode == modeFreedive {
			return recordShape{headerSize: 0x2E, sampleSize: 6, fingerprint: 0x20}
		}
		return recordShape{headerSize: 0x5C, sampleSize: 8, fingerprint: 2}
	case ModelSmartApnea:
		return recordShape{headerSize: 0x50, sampleSize: 14, fingerprint: 0x40}
	case ModelSmartAir:
		return recordShape{headerSize: 0x84, sampleSize: 12, fingerprint: 2}
	default:
		return recordShape{headerSize: 0x5C, sampleSize: 8, fingerprint: 6}
	}
}

// extraBytes returns the number of profile bytes that follow the regular
// samples. The air integrated models append a tank data block every four
// samples. The Smart Apnea appends a second depth stream whose length depends
// on the dive time and the sample rate configured in the header.
func (m Model) extraBytes(nsamples int, header []byte) int {
	switch m {
	case ModelIconHDNet, ModelQuadAir, ModelSmartAir:
		return (nsamples / 4) * 8
	case ModelSmartApnea:
		settings := binary.LittleEndian.Uint16(header[0x1C:])
		divetime := binary.LittleEndian.Uint32(header[0x24:])
		samplerate := 1 << ((settings >> 9) & 0x03)

		return int(divetime) * samplerate * 2
	default:
		return 0
	}
}
