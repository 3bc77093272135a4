package metadata

import "sync"

// Registry is the in-memory index of entities and properties, loaded from the
// database at startup and replaced wholesale on reload.
type Registry struct {
	mu           sync.RWMutex
	entities     map[string]*Entity
	properties   map[string]*Property
	propsByOwner map[string][]*Property // keyed by entity id, load order
}

func NewRegistry() *Registry {
	return &Registry{
		entities:     make(map[string]*Entity),
		properties:   make(map[string]*Property),
		propsByOwner: make(map[string][]*Property),
	}
}

// GetEntity returns the entity with the given id, or nil.
func (r *Registry) GetEntity(id string) *Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entities[id]
}

// GetProperty returns the property with the given id, or nil. Soft-deleted
// properties are kept so callers can tell "deleted" apart from "never existed".
func (r *Registry) GetProperty(id string) *Property {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.properties[id]
}

// PropertiesFor returns the properties of an entity in load order.
func (r *Registry) PropertiesFor(entityID string) []*Property {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.propsByOwner[entityID]
}

// AllEntities returns all registered entities.
func (r *Registry) AllEntities() []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entities := make([]*Entity, 0, len(r.entities))
	for _, e := range r.entities {
		entities = append(entities, e)
	}
	return entities
}

// Load replaces all entities and properties in the registry.
// Called during startup and after metadata mutations.
func (r *Registry) Load(entities []*Entity, properties []*Property) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entities = make(map[string]*Entity, len(entities))
	for _, e := range entities {
		r.entities[e.ID] = e
	}

	r.properties = make(map[string]*Property, len(properties))
	r.propsByOwner = make(map[string][]*Property)
	for _, p := range properties {
		r.properties[p.ID] = p
		r.propsByOwner[p.EntityID] = append(r.propsByOwner[p.EntityID], p)
	}
}
