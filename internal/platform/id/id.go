package id

import (
	"crypto/rand"
	"encoding/hex"
)

// Generator creates opaque identifiers. Card uids and run ids must be
// unique within a session but carry no other structure.
type Generator interface {
	New() string
}

type RandomHex struct{}

func (RandomHex) New() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
