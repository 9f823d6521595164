package convert

import (
	"fmt"
	"unicode/utf8"
)

// ReadChar returns the single character held by a text value
//
// a null value is an ErrArgument, any text that is not exactly one character is an ErrMalformedValue
func ReadChar(value any) (rune, error) {
	if IsNull(value) {
		return 0, fmt.Errorf("%w: a single-character value was expected but got null", ErrArgument)
	}
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return 0, fmt.Errorf("%w: a single-character string was expected but got %T", ErrMalformedValue, value)
	}
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || size != len(s) || r == utf8.RuneError && size == 1 {
		return 0, fmt.Errorf("%w: a single-character string was expected but got %q", ErrMalformedValue, s)
	}
	return r, nil
}

// ReadNullableChar is the same as ReadChar, except that a null value yields nil
func ReadNullableChar(value any) (*rune, error) {
	if IsNull(value) {
		return nil, nil
	}
	r, err := ReadChar(value)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
