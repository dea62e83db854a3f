package snapshot

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/mvp-joe/cbind/internal/cdecl"
)

// wireType is the msgpack form of a cdecl.Type. Function types keep their
// return type in Elem.
type wireType struct {
	Kind     string     `msgpack:"k"`
	Tag      string     `msgpack:"t,omitempty"`
	Name     string     `msgpack:"n,omitempty"`
	External bool       `msgpack:"x,omitempty"`
	ID       int        `msgpack:"i,omitempty"`
	Elem     *wireType  `msgpack:"e,omitempty"`
	Len      int64      `msgpack:"l,omitempty"`
	Args     []wireType `msgpack:"a,omitempty"`
	Variadic bool       `msgpack:"v,omitempty"`
}

const (
	kindVoid      = "void"
	kindBase      = "base"
	kindNamed     = "named"
	kindPtr       = "ptr"
	kindArray     = "array"
	kindFuncProto = "proto"
	kindFuncPtr   = "fnptr"
	kindEnum      = "enum"
	kindComposite = "composite"
)

// EncodeType serializes a type. A nil type encodes to nil.
func EncodeType(t cdecl.Type) ([]byte, error) {
	if t == nil {
		return nil, nil
	}
	w, err := toWire(t)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(w)
}

// DecodeType is the inverse of EncodeType.
func DecodeType(data []byte) (cdecl.Type, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var w wireType
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to decode type: %w", err)
	}
	return fromWire(&w)
}

func toWire(t cdecl.Type) (*wireType, error) {
	switch t := t.(type) {
	case cdecl.Void:
		return &wireType{Kind: kindVoid}, nil
	case cdecl.Base:
		return &wireType{Kind: kindBase, Tag: t.Tag.String()}, nil
	case cdecl.Named:
		return &wireType{Kind: kindNamed, Name: t.Name.Text, ID: int(t.Name.ID), External: t.External}, nil
	case cdecl.Ptr:
		elem, err := toWire(t.Elem)
		if err != nil {
			return nil, err
		}
		return &wireType{Kind: kindPtr, Elem: elem}, nil
	case cdecl.Array:
		elem, err := toWire(t.Elem)
		if err != nil {
			return nil, err
		}
		return &wireType{Kind: kindArray, Elem: elem, Len: t.Len}, nil
	case cdecl.FuncProto:
		return funcToWire(kindFuncProto, t.Ret, t.Args, t.Variadic)
	case cdecl.FuncPtr:
		return funcToWire(kindFuncPtr, t.Ret, t.Args, t.Variadic)
	case cdecl.EnumRef:
		return &wireType{Kind: kindEnum, ID: int(t.ID)}, nil
	case cdecl.CompositeRef:
		return &wireType{Kind: kindComposite, ID: int(t.ID)}, nil
	}
	return nil, fmt.Errorf("cannot encode type %T", t)
}

func funcToWire(kind string, ret cdecl.Type, args []cdecl.Type, variadic bool) (*wireType, error) {
	r, err := toWire(ret)
	if err != nil {
		return nil, err
	}
	w := &wireType{Kind: kind, Elem: r, Variadic: variadic}
	for _, a := range args {
		aw, err := toWire(a)
		if err != nil {
			return nil, err
		}
		w.Args = append(w.Args, *aw)
	}
	return w, nil
}

func fromWire(w *wireType) (cdecl.Type, error) {
	switch w.Kind {
	case kindVoid:
		return cdecl.Void{}, nil
	case kindBase:
		tag, err := cdecl.ParseBaseTag(w.Tag)
		if err != nil {
			return nil, err
		}
		return cdecl.Base{Tag: tag}, nil
	case kindNamed:
		return cdecl.Named{Name: cdecl.Name{Text: w.Name, ID: cdecl.ID(w.ID)}, External: w.External}, nil
	case kindPtr, kindArray:
		if w.Elem == nil {
			return nil, fmt.Errorf("%s without element type", w.Kind)
		}
		elem, err := fromWire(w.Elem)
		if err != nil {
			return nil, err
		}
		if w.Kind == kindPtr {
			return cdecl.Ptr{Elem: elem}, nil
		}
		return cdecl.Array{Elem: elem, Len: w.Len}, nil
	case kindFuncProto, kindFuncPtr:
		if w.Elem == nil {
			return nil, fmt.Errorf("%s without return type", w.Kind)
		}
		ret, err := fromWire(w.Elem)
		if err != nil {
			return nil, err
		}
		var args []cdecl.Type
		for i := range w.Args {
			a, err := fromWire(&w.Args[i])
			if err != nil {
				return nil, err
			}
			args = append(args, a)
		}
		if w.Kind == kindFuncPtr {
			return cdecl.FuncPtr{Ret: ret, Args: args, Variadic: w.Variadic}, nil
		}
		return cdecl.FuncProto{Ret: ret, Args: args, Variadic: w.Variadic}, nil
	case kindEnum:
		return cdecl.EnumRef{ID: cdecl.ID(w.ID)}, nil
	case kindComposite:
		return cdecl.CompositeRef{ID: cdecl.ID(w.ID)}, nil
	}
	return nil, fmt.Errorf("unknown encoded type kind %q", w.Kind)
}
