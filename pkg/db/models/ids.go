package models

import "github.com/google/uuid"

// ensureID assigns a random id when the caller left it zero. The database
// default is only present on postgres.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
