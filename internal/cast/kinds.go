package cast

import "fmt"

// CursorKind classifies a cursor the way libclang does for the subset of C
// declarations the extractor cares about.
type CursorKind int

const (
	CursorInvalid CursorKind = iota
	CursorTranslationUnit
	CursorStructDecl
	CursorUnionDecl
	CursorEnumDecl
	CursorEnumConstantDecl
	CursorFieldDecl
	CursorFunctionDecl
	CursorVarDecl
	CursorParmDecl
	CursorTypedefDecl
	CursorUnexposedDecl
)

var cursorKindNames = map[CursorKind]string{
	CursorInvalid:          "Invalid",
	CursorTranslationUnit:  "TranslationUnit",
	CursorStructDecl:       "StructDecl",
	CursorUnionDecl:        "UnionDecl",
	CursorEnumDecl:         "EnumDecl",
	CursorEnumConstantDecl: "EnumConstantDecl",
	CursorFieldDecl:        "FieldDecl",
	CursorFunctionDecl:     "FunctionDecl",
	CursorVarDecl:          "VarDecl",
	CursorParmDecl:         "ParmDecl",
	CursorTypedefDecl:      "TypedefDecl",
	CursorUnexposedDecl:    "UnexposedDecl",
}

func (k CursorKind) String() string {
	if name, ok := cursorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("CursorKind(%d)", int(k))
}

// ParseCursorKind is the inverse of CursorKind.String.
func ParseCursorKind(s string) (CursorKind, error) {
	for k, name := range cursorKindNames {
		if name == s {
			return k, nil
		}
	}
	return CursorInvalid, fmt.Errorf("unknown cursor kind %q", s)
}

func (k CursorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *CursorKind) UnmarshalText(text []byte) error {
	parsed, err := ParseCursorKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// IsRecord reports whether the kind declares a struct or union.
func (k CursorKind) IsRecord() bool {
	return k == CursorStructDecl || k == CursorUnionDecl
}

// IsTag reports whether the kind declares a struct, union or enum tag.
func (k CursorKind) IsTag() bool {
	return k.IsRecord() || k == CursorEnumDecl
}

// Linkage of a function or variable cursor.
type Linkage int

const (
	LinkageInvalid Linkage = iota
	LinkageNone
	LinkageInternal
	LinkageUniqueExternal
	LinkageExternal
)

func (l Linkage) String() string {
	switch l {
	case LinkageNone:
		return "none"
	case LinkageInternal:
		return "internal"
	case LinkageUniqueExternal:
		return "unique-external"
	case LinkageExternal:
		return "external"
	default:
		return "invalid"
	}
}

// TypeKind mirrors the libclang type taxonomy.
type TypeKind int

const (
	TypeInvalid TypeKind = iota
	TypeUnexposed
	TypeVoid
	TypeBool
	TypeCharU
	TypeUChar
	TypeChar16
	TypeChar32
	TypeUShort
	TypeUInt
	TypeULong
	TypeULongLong
	TypeUInt128
	TypeCharS
	TypeSChar
	TypeWChar
	TypeShort
	TypeInt
	TypeLong
	TypeLongLong
	TypeInt128
	TypeFloat
	TypeDouble
	TypeLongDouble
	TypeComplex
	TypePointer
	TypeRecord
	TypeEnum
	TypeTypedef
	TypeElaborated
	TypeFunctionNoProto
	TypeFunctionProto
	TypeConstantArray
	TypeIncompleteArray
	TypeVariableArray
	TypeVector
)

var typeKindNames = [...]string{
	TypeInvalid:         "Invalid",
	TypeUnexposed:       "Unexposed",
	TypeVoid:            "Void",
	TypeBool:            "Bool",
	TypeCharU:           "Char_U",
	TypeUChar:           "UChar",
	TypeChar16:          "Char16",
	TypeChar32:          "Char32",
	TypeUShort:          "UShort",
	TypeUInt:            "UInt",
	TypeULong:           "ULong",
	TypeULongLong:       "ULongLong",
	TypeUInt128:         "UInt128",
	TypeCharS:           "Char_S",
	TypeSChar:           "SChar",
	TypeWChar:           "WChar",
	TypeShort:           "Short",
	TypeInt:             "Int",
	TypeLong:            "Long",
	TypeLongLong:        "LongLong",
	TypeInt128:          "Int128",
	TypeFloat:           "Float",
	TypeDouble:          "Double",
	TypeLongDouble:      "LongDouble",
	TypeComplex:         "Complex",
	TypePointer:         "Pointer",
	TypeRecord:          "Record",
	TypeEnum:            "Enum",
	TypeTypedef:         "Typedef",
	TypeElaborated:      "Elaborated",
	TypeFunctionNoProto: "FunctionNoProto",
	TypeFunctionProto:   "FunctionProto",
	TypeConstantArray:   "ConstantArray",
	TypeIncompleteArray: "IncompleteArray",
	TypeVariableArray:   "VariableArray",
	TypeVector:          "Vector",
}

func (k TypeKind) String() string {
	if k >= 0 && int(k) < len(typeKindNames) {
		return typeKindNames[k]
	}
	return fmt.Sprintf("TypeKind(%d)", int(k))
}

// IsInteger reports whether the kind is one of the integer kinds, bool included.
func (k TypeKind) IsInteger() bool {
	return k >= TypeBool && k <= TypeInt128
}

// IsUnsigned reports whether an integer kind is unsigned.
func (k TypeKind) IsUnsigned() bool {
	return k >= TypeBool && k <= TypeUInt128
}

// IsFunction reports whether the kind is a function type with or without prototype.
func (k TypeKind) IsFunction() bool {
	return k == TypeFunctionProto || k == TypeFunctionNoProto
}

// IsArray reports whether the kind is any array kind.
func (k TypeKind) IsArray() bool {
	return k == TypeConstantArray || k == TypeIncompleteArray || k == TypeVariableArray
}
