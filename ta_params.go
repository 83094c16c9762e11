// ta_params.go - Parameter Control Word decode and the three
// parameter-combination tables (spec.md §4.8, "Command sizing").
//
// Ported field-for-field from original_source/src/hw/pvr/ta.c's
// ta_get_poly_type_raw/ta_get_vert_type_raw/ta_get_param_size_raw (the
// PCW bit layout itself lives in a header the retrieved source set did
// not include; the field positions used here are the published Dreamcast
// TA parameter-word layout).
package dreamcast

// Parameter types (PCW bits 31:29).
const (
	TAParamEndOfList  uint32 = 0
	TAParamUserClip   uint32 = 1
	TAParamObjListSet uint32 = 2
	TAParamPolyOrVol  uint32 = 4
	TAParamSprite     uint32 = 5
	TAParamVertex     uint32 = 7
)

// List types (PCW bits 28:26).
const (
	TAListOpaque            uint32 = 0
	TAListOpaqueModVol      uint32 = 1
	TAListTranslucent       uint32 = 2
	TAListTranslucentModVol uint32 = 3
	TAListPunchThrough      uint32 = 4
)

// PCW decodes the 32-bit Parameter Control Word heading every TA display
// list command.
type PCW struct {
	Full uint32
}

func (p PCW) ParaType() uint32   { return p.Full >> 29 & 0x7 }
func (p PCW) ListType() uint32   { return p.Full >> 26 & 0x7 }
func (p PCW) EndOfStrip() bool   { return p.Full&(1<<24) != 0 }
func (p PCW) Texture() bool      { return p.Full&(1<<23) != 0 }
func (p PCW) Offset() bool       { return p.Full&(1<<22) != 0 }
func (p PCW) Gouraud() bool      { return p.Full&(1<<21) != 0 }
func (p PCW) UV16Bit() bool      { return p.Full&(1<<20) != 0 }
func (p PCW) ColType() uint32    { return p.Full >> 18 & 0x3 }
func (p PCW) Volume() bool       { return p.Full&(1<<17) != 0 }
func (p PCW) Shadow() bool       { return p.Full&(1<<16) != 0 }

// PolyType implements ta_get_poly_type_raw: one of 7 polygon types (0-6)
// driving both the surface's expected vertex layout and its parameter
// size.
func (p PCW) PolyType() int {
	if p.ListType() == TAListOpaqueModVol || p.ListType() == TAListTranslucentModVol {
		return 6
	}
	if p.ParaType() == TAParamSprite {
		return 5
	}
	if p.Volume() {
		switch p.ColType() {
		case 0:
			return 3
		case 2:
			return 4
		case 3:
			return 3
		}
	}
	switch p.ColType() {
	case 0, 1, 3:
		return 0
	case 2:
		if p.Texture() && !p.Offset() {
			return 1
		}
		if p.Texture() && p.Offset() {
			return 2
		}
		return 1
	}
	return 0
}

// VertexType implements ta_get_vert_type_raw: one of 18 vertex layouts
// (0-17) selected by the most recently parsed polygon/modifier-volume
// header, needed to size subsequent VERTEX parameters.
func (p PCW) VertexType() int {
	if p.ListType() == TAListOpaqueModVol || p.ListType() == TAListTranslucentModVol {
		return 17
	}
	if p.ParaType() == TAParamSprite {
		if p.Texture() {
			return 16
		}
		return 15
	}
	if p.Volume() {
		if p.Texture() {
			switch p.ColType() {
			case 0:
				if p.UV16Bit() {
					return 12
				}
				return 11
			case 2, 3:
				if p.UV16Bit() {
					return 14
				}
				return 13
			}
		}
		switch p.ColType() {
		case 0:
			return 9
		case 2, 3:
			return 10
		}
	}
	if p.Texture() {
		switch p.ColType() {
		case 0:
			if p.UV16Bit() {
				return 4
			}
			return 3
		case 1:
			if p.UV16Bit() {
				return 6
			}
			return 5
		case 2, 3:
			if p.UV16Bit() {
				return 8
			}
			return 7
		}
	}
	switch p.ColType() {
	case 0:
		return 0
	case 1:
		return 1
	case 2, 3:
		return 2
	}
	return 0
}

// only32PolyTypes/only32VertexTypes list the poly/vertex type values
// whose parameter is 32 bytes; every other type is 64, per
// ta_get_param_size_raw.
var only32PolyTypes = map[int]bool{0: true, 1: true, 3: true}
var only32VertexTypes = map[int]bool{0: true, 1: true, 2: true, 3: true, 4: true, 7: true, 8: true, 9: true, 10: true}

// ParamSize implements ta_get_param_size_raw: the byte size (32 or 64) of
// the parameter this PCW heads. vertexType is the type derived from the
// most recent POLY_OR_VOL/SPRITE header, needed only for VERTEX
// parameters themselves.
func (p PCW) ParamSize(vertexType int) int {
	switch p.ParaType() {
	case TAParamEndOfList, TAParamUserClip, TAParamObjListSet, TAParamSprite:
		return 32
	case TAParamPolyOrVol:
		if only32PolyTypes[p.PolyType()] {
			return 32
		}
		return 64
	case TAParamVertex:
		if only32VertexTypes[vertexType] {
			return 32
		}
		return 64
	default:
		return 0
	}
}
