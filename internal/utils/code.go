package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
)

const meetingIDAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ123456789" // omit easily confused chars (I, O, 0)

const (
	MeetingIDLength    = 8
	roomPasswordDigits = 6
)

// GenerateMeetingID draws a random 8-character join code. Uniqueness is not
// guaranteed here; the rooms table carries a unique index on meeting_id and
// callers retry on a collision.
func GenerateMeetingID() (string, error) {
	b := make([]byte, MeetingIDLength)
	for i := 0; i < MeetingIDLength; i++ {
		idxBig, err := rand.Int(rand.Reader, big.NewInt(int64(len(meetingIDAlphabet))))
		if err != nil {
			return "", err
		}
		b[i] = meetingIDAlphabet[idxBig.Int64()]
	}
	return string(b), nil
}

// GenerateRoomPassword draws a uniform zero-padded 6-digit numeric password.
// Passwords are scoped to a single room, so no uniqueness is needed.
func GenerateRoomPassword() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", roomPasswordDigits, n.Int64()), nil
}

// PasswordsMatch compares a room password in constant time.
func PasswordsMatch(expected, given string) bool {
	return subtle.ConstantTimeCompare([]byte(expected), []byte(given)) == 1
}
