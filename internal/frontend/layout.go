package frontend

import (
	"math"

	"github.com/mvp-joe/cbind/internal/cast"
)

// Sizes and alignments follow the System V x86-64 LP64 ABI.
var builtinLayouts = map[cast.TypeKind]struct {
	spelling    string
	size, align int64
}{
	cast.TypeVoid:       {"void", -1, -1},
	cast.TypeBool:       {"_Bool", 1, 1},
	cast.TypeCharS:      {"char", 1, 1},
	cast.TypeSChar:      {"signed char", 1, 1},
	cast.TypeUChar:      {"unsigned char", 1, 1},
	cast.TypeShort:      {"short", 2, 2},
	cast.TypeUShort:     {"unsigned short", 2, 2},
	cast.TypeInt:        {"int", 4, 4},
	cast.TypeUInt:       {"unsigned int", 4, 4},
	cast.TypeLong:       {"long", 8, 8},
	cast.TypeULong:      {"unsigned long", 8, 8},
	cast.TypeLongLong:   {"long long", 8, 8},
	cast.TypeULongLong:  {"unsigned long long", 8, 8},
	cast.TypeInt128:     {"__int128", 16, 16},
	cast.TypeUInt128:    {"unsigned __int128", 16, 16},
	cast.TypeFloat:      {"float", 4, 4},
	cast.TypeDouble:     {"double", 8, 8},
	cast.TypeLongDouble: {"long double", 16, 16},
	cast.TypeChar16:     {"char16_t", 2, 2},
	cast.TypeChar32:     {"char32_t", 4, 4},
	cast.TypeWChar:      {"wchar_t", 4, 4},
}

// builtinType returns a fresh type of a builtin kind.
func builtinType(kind cast.TypeKind) *cast.Type {
	l := builtinLayouts[kind]
	return cast.NewBuiltin(kind, l.spelling, l.size, l.align)
}

// complexOf returns the _Complex type over a floating element.
func complexOf(elem *cast.Type) *cast.Type {
	size, align := elem.SizeOf(), elem.AlignOf()
	if size > 0 {
		size *= 2
	}
	return &cast.Type{Kind: cast.TypeComplex, Spelling: elem.Spelling + " _Complex", Elem: elem, Size: size, Align: align}
}

// vectorOf returns a GNU vector type of totalSize bytes.
func vectorOf(elem *cast.Type, totalSize int64) *cast.Type {
	t := &cast.Type{Kind: cast.TypeVector, Elem: elem, Size: totalSize, Align: totalSize}
	if es := elem.SizeOf(); es > 0 {
		t.Len = totalSize / es
	}
	return t
}

func alignUp(v, align int64) int64 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}

// layoutRecord assigns bit offsets to the fields of a record definition and
// completes the size and alignment of the record's tag type.
//
// Bitfields are allocated in storage units of their declared type and never
// straddle a unit boundary unless the record is packed. Unnamed bitfields
// do not raise the record's alignment; a zero-width bitfield aligns the next
// field to its type.
func layoutRecord(rec *cast.Cursor, packed bool, alignAttr int64) {
	union := rec.Kind == cast.CursorUnionDecl
	var offset int64
	maxAlign := int64(1)
	complete := true

	for _, f := range rec.Children {
		if f.Kind != cast.CursorFieldDecl {
			continue
		}
		size, align := f.Type.SizeOf(), f.Type.AlignOf()
		if size < 0 {
			if f.Type.CanonicalType().Kind == cast.TypeIncompleteArray {
				size = 0
			} else {
				complete = false
				size = 0
			}
		}
		if align <= 0 {
			align = 1
		}
		fieldAlign := align
		if packed {
			fieldAlign = 1
		}

		if f.BitWidth >= 0 {
			width := int64(f.BitWidth)
			switch {
			case union:
				f.FieldOffset = 0
				offset = max(offset, width)
			case width == 0:
				offset = alignUp(offset, align*8)
				f.FieldOffset = offset
				continue
			default:
				unit := align * 8
				if !packed && offset/unit != (offset+width-1)/unit {
					offset = alignUp(offset, unit)
				}
				f.FieldOffset = offset
				offset += width
			}
			if f.Spelling != "" {
				maxAlign = max(maxAlign, fieldAlign)
			}
			continue
		}

		if union {
			f.FieldOffset = 0
			offset = max(offset, size*8)
		} else {
			offset = alignUp(offset, fieldAlign*8)
			f.FieldOffset = offset
			offset += size * 8
		}
		maxAlign = max(maxAlign, fieldAlign)
	}

	if alignAttr > 0 {
		maxAlign = max(maxAlign, alignAttr)
	}
	if !complete {
		rec.Type.Size, rec.Type.Align = -1, -1
		return
	}
	bytes := (offset + 7) / 8
	rec.Type.Size = alignUp(bytes, maxAlign)
	rec.Type.Align = maxAlign
}

// enumIntegerType picks the integer type of an enum: int when some value is
// negative, unsigned int otherwise, widened to 64 bits when a value does not
// fit. An explicit underlying type wins.
func enumIntegerType(values []int64, explicit *cast.Type) *cast.Type {
	if explicit != nil {
		return explicit
	}
	negative, wide := false, false
	for _, v := range values {
		if v < 0 {
			negative = true
		}
	}
	for _, v := range values {
		if negative && (v < math.MinInt32 || v > math.MaxInt32) {
			wide = true
		}
		if !negative && v > math.MaxUint32 {
			wide = true
		}
	}
	switch {
	case negative && wide:
		return builtinType(cast.TypeLong)
	case negative:
		return builtinType(cast.TypeInt)
	case wide:
		return builtinType(cast.TypeULong)
	default:
		return builtinType(cast.TypeUInt)
	}
}
