package chat

import "strings"

// keySep joins the two participant ids. Ids containing it are rejected so
// distinct pairs never share a key.
const keySep = "_"

// ConversationKey returns the order-independent key for a direct conversation:
// the two trimmed ids sorted and joined with "_".
func ConversationKey(a, b string) (string, error) {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	switch {
	case a == "":
		return "", ValidationError{Field: "userA", Msg: "user id is required"}
	case b == "":
		return "", ValidationError{Field: "userB", Msg: "user id is required"}
	case strings.Contains(a, keySep):
		return "", ValidationError{Field: "userA", Msg: "user id must not contain " + keySep}
	case strings.Contains(b, keySep):
		return "", ValidationError{Field: "userB", Msg: "user id must not contain " + keySep}
	case a == b:
		return "", ErrSelfConversation
	}
	if b < a {
		a, b = b, a
	}
	return a + keySep + b, nil
}

// Participants splits a key produced by ConversationKey.
func Participants(key string) (a, b string, ok bool) {
	a, b, ok = strings.Cut(key, keySep)
	if !ok || a == "" || b == "" {
		return "", "", false
	}
	return a, b, true
}
