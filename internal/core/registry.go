package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]EntityDefinition)
	registryMu sync.RWMutex
)

// Register adds an entity definition to the registry.
// Panics if an entity with the same key is already registered.
func Register(def EntityDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Info.Key]; exists {
		panic(fmt.Sprintf("entity already registered: %s", def.Info.Key))
	}
	if def.Info.File == "" {
		def.Info.File = def.Info.Key + ".csv"
	}

	registry[def.Info.Key] = def
}

// Get returns an entity definition by key.
// Returns false if not found.
func Get(key string) (EntityDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// MustGet returns an entity definition by key and panics when it is missing.
// Entity keys are compile-time constants, so a miss is a programming error.
func MustGet(key string) EntityDefinition {
	def, ok := Get(key)
	if !ok {
		panic(fmt.Sprintf("unknown entity: %s", key))
	}
	return def
}

// All returns all registered entity definitions in emit order.
func All() []EntityDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]EntityDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Info.Order != result[j].Info.Order {
			return result[i].Info.Order < result[j].Info.Order
		}
		return result[i].Info.Key < result[j].Info.Key
	})

	return result
}

// EntityCount returns the number of registered entities.
func EntityCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered entities.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]EntityDefinition)
}
