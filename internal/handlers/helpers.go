package handlers

import "github.com/google/uuid"

func parseUUID(value string) (uuid.UUID, bool) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
