package rooms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studento/studyrooms_backend/internal/models"
)

// Input validation happens before any storage access, so these run against a
// service with no database attached.

func TestCreateRejectsBlankName(t *testing.T) {
	s := NewService(nil)
	_, _, err := s.Create(models.User{ID: "user-a"}, "   ", "", 0)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestJoinByCredentialRequiresBothFields(t *testing.T) {
	s := NewService(nil)

	_, err := s.JoinByCredential("", "042137", models.User{ID: "user-a"})
	assert.True(t, IsValidationError(err))

	_, err = s.JoinByCredential("XKCD1234", "", models.User{ID: "user-a"})
	assert.True(t, IsValidationError(err))
}

func TestTransferHostRequiresTarget(t *testing.T) {
	s := NewService(nil)
	_, err := s.TransferHost("room-1", "user-a", "  ")
	assert.True(t, IsValidationError(err))
}

func TestIsValidationError(t *testing.T) {
	assert.True(t, IsValidationError(validationErrorf("bad input")))
	assert.False(t, IsValidationError(ErrRoomFull))
	assert.False(t, IsValidationError(nil))
}
