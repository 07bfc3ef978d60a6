// Package factory builds pluggable backends (record stores, metric sinks, audit
// stores) from configuration. A backend is selected by a type string and
// receives its raw settings, which the factory decodes into a typed struct.
//
//	reg := factory.NewRegistry[store.Store]()
//	reg.MustRegister("memory", func(map[string]any) (store.Store, error) {
//	    return store.NewMemoryStore(), nil
//	})
//	s, err := reg.Create(factory.ModuleConfig{Type: "memory"})
package factory
