package fieldline

import "time"

// Entity holds the timestamp pair shared by every persisted Fieldline entity.
// Embed it in domain structs; stores maintain UpdatedAt on writes.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity returns an Entity with both timestamps set to the current UTC time.
func NewEntity() Entity {
	now := time.Now().UTC()

	return Entity{CreatedAt: now, UpdatedAt: now}
}
