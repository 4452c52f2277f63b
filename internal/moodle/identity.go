package moodle

import (
	"strings"

	"github.com/google/uuid"
)

// IDGenerator returns a fresh UUID for a user the source gave none.
// Tests inject a deterministic generator.
type IDGenerator func() uuid.UUID

// RandomIDs generates random (version 4) UUIDs.
func RandomIDs() uuid.UUID { return uuid.New() }

// SequentialIDs returns a generator that yields a predictable UUID sequence
// derived from seed. Two generators with the same seed yield the same sequence.
func SequentialIDs(seed string) IDGenerator {
	ns := uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed))
	var n int
	return func() uuid.UUID {
		n++
		return uuid.NewSHA1(ns, []byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
	}
}

// identity assigns one UUID per normalized email and remembers every native
// user id seen for that email.
type identity struct {
	newID    IDGenerator
	byEmail  map[string]uuid.UUID
	byUserID map[int64]uuid.UUID
}

func newIdentity(newID IDGenerator) *identity {
	if newID == nil {
		newID = RandomIDs
	}
	return &identity{
		newID:    newID,
		byEmail:  make(map[string]uuid.UUID),
		byUserID: make(map[int64]uuid.UUID),
	}
}

// NormalizeEmail returns the deduplication key of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// resolve returns the UUID for the entry and whether this is the first time
// its email has been seen. A source-supplied UUID is reused on first sight.
func (id *identity) resolve(e RosterEntry) (uuid.UUID, bool, error) {
	key := NormalizeEmail(e.Email)
	if u, ok := id.byEmail[key]; ok {
		if _, seen := id.byUserID[e.ID]; !seen {
			id.byUserID[e.ID] = u
		}
		return u, false, nil
	}

	var u uuid.UUID
	if s := strings.TrimSpace(e.UUID); s != "" {
		parsed, err := uuid.Parse(s)
		if err != nil {
			return uuid.Nil, false, err
		}
		u = parsed
	} else {
		u = id.newID()
	}

	id.byEmail[key] = u
	if _, seen := id.byUserID[e.ID]; !seen {
		id.byUserID[e.ID] = u
	}
	return u, true, nil
}
