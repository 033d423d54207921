package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentifierKeysMatchStoredEmail(t *testing.T) {
	stored := NormalizeEmail("Straße@Example.de")

	for _, typed := range []string{"Straße@Example.de", " straße@example.de", "STRASSE@example.DE"} {
		email, _ := identifierKeys(typed)
		assert.Equal(t, stored, email, typed)
	}

	_, username := identifierKeys(" Ada_L ")
	assert.Equal(t, "ada_l", username)
}
