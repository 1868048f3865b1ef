package fieldline

import "github.com/fieldline/fieldline/id"

// ID is the primary identifier type for all Fieldline entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
