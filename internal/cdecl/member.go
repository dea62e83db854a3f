package cdecl

// Member is one entry of a composite's member list.
type Member interface {
	MemberName() string
	MemberType() Type
	isMember()
}

// Field is an ordinary member. Offset is in bits from the start of the
// composite. Owned is set when the field's type is the anonymous nested
// declaration written inline right before it.
type Field struct {
	Name   string
	Type   Type
	Offset int64
	Owned  bool
}

// Bitfield is a member with a declared bit width.
type Bitfield struct {
	Name   string
	Type   Type
	Width  int
	Offset int64
}

func (f Field) MemberName() string    { return f.Name }
func (f Bitfield) MemberName() string { return f.Name }
func (f Field) MemberType() Type      { return f.Type }
func (f Bitfield) MemberType() Type   { return f.Type }
func (Field) isMember()               {}
func (Bitfield) isMember()            {}

// Members is the members-of side table entry of a composite.
//
// Irregular marks composites with a bitfield or with no members at all;
// a consumer that cannot express them may fall back to a blob of
// Layout.Size bytes. Opaque marks composites declared but never defined.
type Members struct {
	Fields    []Member
	Irregular bool
	Opaque    bool
}

// EnumItem is one enumerator. Values may repeat.
type EnumItem struct {
	Name  string `json:"name" yaml:"name"`
	Value int64  `json:"value" yaml:"value"`
}

// EnumItems is the enum-items-of side table entry of an enum.
type EnumItems struct {
	Items      []EnumItem
	Underlying Type
}
