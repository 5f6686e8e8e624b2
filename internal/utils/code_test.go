package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateMeetingID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id, err := GenerateMeetingID()
		require.NoError(t, err)
		assert.Len(t, id, MeetingIDLength)
		for _, ch := range id {
			assert.True(t, strings.ContainsRune(meetingIDAlphabet, ch), "unexpected character %q", ch)
		}
		seen[id] = true
	}
	// 50 draws from a 33^8 space colliding would mean a broken generator
	assert.Greater(t, len(seen), 1)
}

func TestMeetingIDAlphabetOmitsConfusables(t *testing.T) {
	for _, ch := range "IO0" {
		assert.False(t, strings.ContainsRune(meetingIDAlphabet, ch))
	}
	assert.Len(t, meetingIDAlphabet, 33)
}

func TestGenerateRoomPassword(t *testing.T) {
	for i := 0; i < 50; i++ {
		pw, err := GenerateRoomPassword()
		require.NoError(t, err)
		require.Len(t, pw, 6, "password must be zero-padded to 6 digits")
		for _, ch := range pw {
			assert.True(t, ch >= '0' && ch <= '9')
		}
	}
}

func TestPasswordsMatch(t *testing.T) {
	assert.True(t, PasswordsMatch("042137", "042137"))
	assert.False(t, PasswordsMatch("042137", "042138"))
	assert.False(t, PasswordsMatch("042137", ""))
}
