package session

import "fmt"

// KeyPrefix namespaces all session records in the store.
const KeyPrefix = "session:"

// Key is the store key for a session record.
func Key(sessionID string) string {
	return KeyPrefix + sessionID
}

// ContentKey is the store key for a participant's generated content.
// This is the single canonical template; no other participant-content key
// shape exists.
func ContentKey(sessionID, participantID string) string {
	return fmt.Sprintf("%s%s:participant:%s", KeyPrefix, sessionID, participantID)
}
