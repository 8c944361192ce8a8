package store

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"modeladmin/internal/metadata"
)

// NewKey returns an application-assigned primary key for uuid and ulid
// keys. Integer keys are assigned by the database and report false.
func NewKey(pk metadata.PrimaryKey) (any, bool) {
	if !pk.Generated {
		return nil, false
	}
	switch pk.Type {
	case "uuid":
		return uuid.NewString(), true
	case "ulid":
		return ulid.Make().String(), true
	}
	return nil, false
}
