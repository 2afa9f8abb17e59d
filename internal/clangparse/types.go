package clangparse

import (
	"strconv"

	"github.com/go-clang/clang-v13/clang"

	"mbedtlsbindgen/internal/ir"
)

func (p *parser) goType(t clang.Type) ir.Type {
	switch t.Kind() {
	case clang.Type_Elaborated:
		return p.goType(t.NamedType())

	case clang.Type_Typedef:
		decl := t.Declaration()
		if decl.Location().IsInSystemHeader() {
			// Platform typedefs of plain scalars (size_t, uint32_t) resolve to
			// Go basics; the rest (FILE, va_list) come from the types package.
			if b := basicType(t); b.Kind == ir.Basic {
				return b
			}
		}
		return ir.NamedType(decl.Spelling())

	case clang.Type_Record, clang.Type_Enum:
		decl := t.Declaration()
		if name := p.declName(decl); name != "" {
			return ir.NamedType(name)
		}
		if t.Kind() == clang.Type_Enum {
			return basicType(decl.EnumDeclIntegerType())
		}
		return blob(t.SizeOf())

	case clang.Type_Pointer:
		pointee := t.PointeeType()
		switch pointee.CanonicalType().Kind() {
		case clang.Type_FunctionProto, clang.Type_FunctionNoProto:
			return ir.FuncPointer()
		case clang.Type_Void:
			return ir.PointerTo(ir.VoidType())
		}
		return ir.PointerTo(p.goType(pointee))

	case clang.Type_ConstantArray:
		return ir.ArrayOf(p.goType(t.ArrayElementType()), t.ArraySize())

	case clang.Type_IncompleteArray:
		return ir.ArrayOf(p.goType(t.ArrayElementType()), 0)

	case clang.Type_FunctionProto, clang.Type_FunctionNoProto:
		return ir.FuncPointer()
	}
	return basicType(t)
}

// paramType applies C's array-to-pointer decay to parameter types.
func (p *parser) paramType(t clang.Type) ir.Type {
	switch t.Kind() {
	case clang.Type_ConstantArray, clang.Type_IncompleteArray:
		return ir.PointerTo(p.goType(t.ArrayElementType()))
	}
	return p.goType(t)
}

// basicType maps a scalar type by its canonical kind and size.
func basicType(t clang.Type) ir.Type {
	c := t.CanonicalType()
	switch c.Kind() {
	case clang.Type_Void:
		return ir.VoidType()
	case clang.Type_Bool:
		return ir.BasicType("bool")
	case clang.Type_Float:
		return ir.BasicType("float32")
	case clang.Type_Double:
		return ir.BasicType("float64")
	case clang.Type_Char_S, clang.Type_SChar, clang.Type_WChar,
		clang.Type_Short, clang.Type_Int, clang.Type_Long, clang.Type_LongLong:
		return intType(true, c.SizeOf())
	case clang.Type_Char_U, clang.Type_UChar, clang.Type_Char16, clang.Type_Char32,
		clang.Type_UShort, clang.Type_UInt, clang.Type_ULong, clang.Type_ULongLong:
		return intType(false, c.SizeOf())
	case clang.Type_Enum:
		return basicType(c.Declaration().EnumDeclIntegerType())
	case clang.Type_Pointer:
		return ir.BasicType("uintptr")
	}
	return blob(c.SizeOf())
}

func intType(signed bool, size int64) ir.Type {
	switch size {
	case 1, 2, 4, 8:
	default:
		return blob(size)
	}
	name := "int" + strconv.FormatInt(size*8, 10)
	if !signed {
		name = "u" + name
	}
	return ir.BasicType(name)
}

// blob stands in for types Go has no equivalent of, such as long double and
// 128-bit integers.
func blob(size int64) ir.Type {
	if size <= 0 {
		return ir.VoidType()
	}
	return ir.ArrayOf(ir.BasicType("byte"), size)
}

// elementUSR returns the USR of the record or enum t names, looking through
// arrays.
func elementUSR(t clang.Type) string {
	c := t.CanonicalType()
	for c.Kind() == clang.Type_ConstantArray || c.Kind() == clang.Type_IncompleteArray {
		c = c.ArrayElementType().CanonicalType()
	}
	switch c.Kind() {
	case clang.Type_Record, clang.Type_Enum:
		return c.Declaration().USR()
	}
	return ""
}
