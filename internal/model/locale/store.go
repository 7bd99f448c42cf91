package locale

// Store exposes locale lookup for the controller and HTTP handlers.
type Store interface {
	List() []Locale
	Find(lang Language) (Locale, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Locale
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied locales.
func NewMemoryStore(items []Locale) *MemoryStore {
	return &MemoryStore{items: append([]Locale(nil), items...)}
}

// List returns the configured locales.
func (s *MemoryStore) List() []Locale {
	return append([]Locale(nil), s.items...)
}

// Find looks up a locale by language.
func (s *MemoryStore) Find(lang Language) (Locale, bool) {
	for _, item := range s.items {
		if item.Language == lang {
			return item, true
		}
	}
	return Locale{}, false
}
