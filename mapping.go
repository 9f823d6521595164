package rowbind

import "github.com/go-andiamo/rowbind/convert"

// Mapping customises how a column is read and converted into its struct field
type Mapping struct {
	// Scanner is an optional ColumnScanner function that reads the value from the database column
	Scanner ColumnScanner
	// Serializer is an optional convert.Deserializer used to deserialize text columns into the field
	Serializer any
	// EnumCaseSensitive makes enum member names match exactly (by default case is ignored)
	EnumCaseSensitive bool
	// TimeLayout is the layout used to parse text columns into (or format times into) the field
	//
	// overrides any layout from the field's `format` tag
	TimeLayout string
}

// Mappings is a map of Mapping by column name
//
// Mappings can be passed as an option to NewStructMapper
type Mappings map[string]Mapping

func (m Mapping) targetOptions() []convert.TargetOption {
	result := make([]convert.TargetOption, 0, 3)
	if m.Serializer != nil {
		result = append(result, convert.WithSerializer(m.Serializer))
	}
	if m.EnumCaseSensitive {
		result = append(result, convert.WithEnumCaseSensitive(true))
	}
	if m.TimeLayout != "" {
		result = append(result, convert.WithTimeLayout(m.TimeLayout))
	}
	return result
}
