package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHash_KnownVector(t *testing.T) {
	// sha256("hello")
	assert.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		Hash([]byte("hello")))
}

func TestHash_IdenticalBytesIdenticalHash(t *testing.T) {
	a := Hash([]byte("same content"))
	b := Hash([]byte("same content"))
	assert.Equal(t, a, b)

	c := Hash([]byte("different content"))
	assert.NotEqual(t, a, c)
}

func TestChunkID_StableDerivation(t *testing.T) {
	doc := DocumentID("abc123")
	assert.Equal(t, "abc123", doc)
	assert.Equal(t, "abc123:0", ChunkID(doc, 0))
	assert.Equal(t, "abc123:17", ChunkID(doc, 17))
}
