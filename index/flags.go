package index

import "fmt"

// FlagDefinition maps one flag value to its symbolic names.
type FlagDefinition struct {
	Value      uint32
	ShortDescr string
	LongDescr  string
}

// AttrTypeDefs renders attribute kind codes with their conventional
// symbolic names.
var AttrTypeDefs = []FlagDefinition{
	{0x00, "$UNUSED", "$UNUSED"},
	{0x10, "$STANDARD_INFORMATION", "$STANDARD_INFORMATION"},
	{0x20, "$ATTRIBUTE_LIST", "$ATTRIBUTE_LIST"},
	{0x30, "$FILE_NAME", "$FILE_NAME"},
	{0x40, "$OBJECT_ID", "$OBJECT_ID"},
	{0x50, "$SECURITY_DESCRIPTOR", "$SECURITY_DESCRIPTOR"},
	{0x60, "$VOLUME_NAME", "$VOLUME_NAME"},
	{0x70, "$VOLUME_INFORMATION", "$VOLUME_INFORMATION"},
	{0x80, "$DATA", "$DATA"},
	{0x90, "$INDEX_ROOT", "$INDEX_ROOT"},
	{0xA0, "$INDEX_ALLOCATION", "$INDEX_ALLOCATION"},
	{0xB0, "$BITMAP", "$BITMAP"},
	{0xC0, "$REPARSE_POINT", "$REPARSE_POINT"},
	{0xD0, "$EA_INFORMATION", "$EA_INFORMATION"},
	{0xE0, "$EA", "$EA"},
	{0x100, "$LOGGED_UTILITY_STREAM", "$LOGGED_UTILITY_STREAM"},
}

// ExactFlagToString renders a value that matches exactly one definition;
// unknown values fall back to hex.
func ExactFlagToString(value uint32, defs []FlagDefinition) string {
	for _, def := range defs {
		if def.Value == value {
			return def.ShortDescr
		}
	}
	return fmt.Sprintf("0x%X", value)
}
