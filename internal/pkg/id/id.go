package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string for a user record. ULIDs sort by creation
// time and work as both a DynamoDB GSI key and a Postgres primary key.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
