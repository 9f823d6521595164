package rowbind

// ErrorTranslator is an option that can be passed to NewStructMapper, StructMapper.Rows, StructMapper.FirstRow etc.
//
// and is called with any errors so that they can be translated (or wrapped)
//
// Is particularly useful for translating sql.ErrNoRows errors to your own 'not found' errors - or
// for inspecting a convert.DataError to report which column could not be read
type ErrorTranslator interface {
	// Translate translates the passed error
	Translate(error) error
}

func translateError(err error, translator ErrorTranslator) error {
	if err == nil {
		return nil
	}
	return translator.Translate(err)
}

// ErrorTranslatorFunc is an adapter to allow a plain func to be used as an ErrorTranslator
type ErrorTranslatorFunc func(error) error

var _ ErrorTranslator = ErrorTranslatorFunc(nil)

func (f ErrorTranslatorFunc) Translate(err error) error {
	return f(err)
}

var defaultErrorTranslator ErrorTranslator = ErrorTranslatorFunc(func(err error) error {
	return err
})
