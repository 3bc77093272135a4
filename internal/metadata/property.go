package metadata

// PropertyType is the data type of a user-defined property.
type PropertyType string

const (
	TypeText     PropertyType = "text"
	TypeNumber   PropertyType = "number"
	TypeBoolean  PropertyType = "boolean"
	TypeDate     PropertyType = "date"
	TypeDateTime PropertyType = "datetime"
	TypeTime     PropertyType = "time"
	// TypeEntity is a reference to a record of another entity. Entity
	// properties cannot be used in query rules.
	TypeEntity PropertyType = "entity"
)

// Valid reports whether t is a known property type.
func (t PropertyType) Valid() bool {
	switch t {
	case TypeText, TypeNumber, TypeBoolean, TypeDate, TypeDateTime, TypeTime, TypeEntity:
		return true
	}
	return false
}

// Property is a user-defined column on an entity.
type Property struct {
	ID        string       `json:"id"`
	EntityID  string       `json:"entity_id"`
	Name      string       `json:"name"`
	Type      PropertyType `json:"property_type"`
	IsDeleted bool         `json:"is_deleted"`
}

// Entity is a user-defined record type. Properties are held in the registry.
type Entity struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id,omitempty"`
	Name      string `json:"name"`
	IsDeleted bool   `json:"is_deleted"`
}
