package extract

import (
	"fmt"

	"github.com/mvp-joe/cbind/internal/cast"
	"github.com/mvp-joe/cbind/internal/cdecl"
)

var baseTags = map[cast.TypeKind]cdecl.BaseTag{
	cast.TypeCharS:      cdecl.CharS,
	cast.TypeCharU:      cdecl.CharU,
	cast.TypeSChar:      cdecl.SChar,
	cast.TypeUChar:      cdecl.UChar,
	cast.TypeShort:      cdecl.Short,
	cast.TypeUShort:     cdecl.UShort,
	cast.TypeInt:        cdecl.Int,
	cast.TypeUInt:       cdecl.UInt,
	cast.TypeLong:       cdecl.Long,
	cast.TypeULong:      cdecl.ULong,
	cast.TypeLongLong:   cdecl.LongLong,
	cast.TypeULongLong:  cdecl.ULongLong,
	cast.TypeFloat:      cdecl.Float,
	cast.TypeDouble:     cdecl.Double,
	cast.TypeLongDouble: cdecl.LongDouble,

	// Same-width stand-ins for the character types without a tag of their own.
	cast.TypeBool:   cdecl.UChar,
	cast.TypeChar16: cdecl.UShort,
	cast.TypeChar32: cdecl.UInt,
	cast.TypeWChar:  cdecl.Int,
}

var complexTags = map[cast.TypeKind]cdecl.BaseTag{
	cast.TypeFloat:      cdecl.Complex32,
	cast.TypeDouble:     cdecl.Complex64,
	cast.TypeLongDouble: cdecl.ComplexLongDouble,
}

// convert maps a front-end type to the model. origin is the cursor whose
// type is being converted; it only changes how unclassifiable pointers of
// variables are handled.
func convert(s *State, t *cast.Type, origin *cast.Cursor) (cdecl.Type, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: missing type", ErrNotFound)
	}
	if tag, ok := baseTags[t.Kind]; ok {
		return cdecl.Base{Tag: tag}, nil
	}

	switch t.Kind {
	case cast.TypeVoid:
		return cdecl.Void{}, nil
	case cast.TypeComplex:
		if t.Elem != nil {
			if tag, ok := complexTags[t.Elem.CanonicalType().Kind]; ok {
				return cdecl.Base{Tag: tag}, nil
			}
		}
		return nil, &UnsupportedTypeError{Kind: t.Kind}
	case cast.TypePointer:
		return convertPointer(s, t, origin)
	case cast.TypeConstantArray, cast.TypeIncompleteArray, cast.TypeVariableArray:
		elem, err := convert(s, t.Elem, origin)
		if err != nil {
			return nil, err
		}
		var n int64
		if t.Kind == cast.TypeConstantArray {
			n = t.Len
		}
		return cdecl.Array{Elem: elem, Len: n}, nil
	case cast.TypeFunctionProto, cast.TypeFunctionNoProto:
		ret, args, err := convertSignature(s, t, origin)
		if err != nil {
			return nil, err
		}
		return cdecl.FuncProto{Ret: ret, Args: args, Variadic: t.Variadic}, nil
	case cast.TypeRecord, cast.TypeEnum:
		return tagRef(s, t)
	case cast.TypeTypedef:
		return typedefRef(s, t)
	case cast.TypeElaborated:
		return convert(s, t.Named, origin)
	case cast.TypeUnexposed:
		if canon := t.CanonicalType(); canon != t {
			return convert(s, canon, origin)
		}
	}
	return nil, &UnsupportedTypeError{Kind: t.Kind}
}

func convertPointer(s *State, t *cast.Type, origin *cast.Cursor) (cdecl.Type, error) {
	pointee := t.Pointee
	if pointee == nil {
		return cdecl.Ptr{Elem: cdecl.Void{}}, nil
	}

	switch pointee.Kind {
	case cast.TypeUnexposed:
		if pointee.ResultType() != nil {
			return convertFuncPtr(s, pointee.CanonicalType(), origin)
		}
		// Nothing to classify: a variable falls back to the desugared pointer.
		if origin != nil && origin.Kind == cast.CursorVarDecl {
			if canon := t.CanonicalType(); canon != t {
				return convert(s, canon, origin)
			}
		}
	case cast.TypeFunctionProto, cast.TypeFunctionNoProto:
		return convertFuncPtr(s, pointee, origin)
	case cast.TypeRecord, cast.TypeEnum, cast.TypeTypedef, cast.TypeElaborated:
		if pointee.Declaration() == nil {
			return cdecl.Ptr{Elem: cdecl.Void{}}, nil
		}
	}

	elem, err := convert(s, pointee, origin)
	if err != nil {
		return nil, err
	}
	return cdecl.Ptr{Elem: elem}, nil
}

func convertFuncPtr(s *State, fn *cast.Type, origin *cast.Cursor) (cdecl.Type, error) {
	ret, args, err := convertSignature(s, fn, origin)
	if err != nil {
		return nil, err
	}
	return cdecl.FuncPtr{Ret: ret, Args: args, Variadic: fn.Variadic}, nil
}

func convertSignature(s *State, fn *cast.Type, origin *cast.Cursor) (cdecl.Type, []cdecl.Type, error) {
	ret, err := convert(s, fn.Result, origin)
	if err != nil {
		return nil, nil, fmt.Errorf("return type: %w", err)
	}
	var args []cdecl.Type
	for i, a := range fn.Args {
		at, err := convert(s, a, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("parameter %d: %w", i+1, err)
		}
		args = append(args, at)
	}
	return ret, args, nil
}

// tagRef resolves a record or enum type through the registry. A tag seen
// here for the first time is published as an opaque placeholder until its
// definition is visited.
func tagRef(s *State, t *cast.Type) (cdecl.Type, error) {
	decl := t.Declaration()
	if decl == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, t.Spelling)
	}
	id, g, created, err := s.reg.LookupOrCreate(decl)
	if err != nil {
		return nil, err
	}
	if err := s.usable(id); err != nil {
		return nil, err
	}
	if created {
		s.declareOpaque(id, decl.Canonical())
	}
	s.referenced[id] = true

	switch g := g.(type) {
	case *cdecl.Builtin:
		return cdecl.Named{Name: g.Name, External: true}, nil
	case *cdecl.Composite:
		return cdecl.CompositeRef{ID: id}, nil
	case *cdecl.Enum:
		return cdecl.EnumRef{ID: id}, nil
	}
	return nil, &InvalidCompositeKindError{Kind: decl.Kind}
}

// typedefRef resolves a typedef name. Typedefs are registered when their
// declaration is visited, so an unregistered one does not exist in this unit.
func typedefRef(s *State, t *cast.Type) (cdecl.Type, error) {
	if t.Decl == nil {
		return nil, fmt.Errorf("%w: unknown type name %s", ErrNotFound, t.Spelling)
	}
	id, g, err := s.reg.Find(t.Decl)
	if err != nil {
		return nil, err
	}
	if err := s.usable(id); err != nil {
		return nil, err
	}
	s.referenced[id] = true
	_, external := g.(*cdecl.Builtin)
	return cdecl.Named{Name: g.GlobalName(), External: external}, nil
}
