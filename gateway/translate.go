package gateway

// Translator is the localization collaborator. Implementations return the key
// unchanged when no translation exists, so catalogs may use readable English
// defaults as keys.
type Translator interface {
	Translate(key string) string
}

// MapTranslator is a map-backed Translator with pass-through-on-miss
// semantics. The zero value passes every key through.
type MapTranslator map[string]string

func (m MapTranslator) Translate(key string) string {
	if value, ok := m[key]; ok {
		return value
	}
	return key
}
