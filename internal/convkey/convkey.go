// Package convkey derives the canonical identifier of a two-party
// conversation. Both participants compute the same key independently, so no
// lookup or negotiation is needed before reading or writing a thread.
//
// Derivation: sort the two identifiers by ordinal string comparison and join
// them with Separator. The function is pure; equal or blank identifiers are
// rejected instead of producing a degenerate key. Identifiers containing
// Separator are rejected too, otherwise ("a_b", "c") and ("a", "b_c") would
// share a key.
package convkey

import (
	"errors"
	"strings"
)

// Separator joins the two sorted participant identifiers.
const Separator = "_"

var (
	// ErrEmptyParticipant is returned when either identifier is blank.
	ErrEmptyParticipant = errors.New("participant id is empty")

	// ErrSelfConversation is returned when both identifiers are equal.
	ErrSelfConversation = errors.New("participants must be two different ids")

	// ErrSeparatorInID is returned when an identifier contains Separator.
	ErrSeparatorInID = errors.New("participant id must not contain " + Separator)
)

// Pair is the ordered participant tuple of a conversation (Pair[0] < Pair[1]).
type Pair [2]string

// Participants validates a and b and returns them in ascending order.
func Participants(a, b string) (Pair, error) {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return Pair{}, ErrEmptyParticipant
	}
	if !ValidID(a) || !ValidID(b) {
		return Pair{}, ErrSeparatorInID
	}
	if a == b {
		return Pair{}, ErrSelfConversation
	}
	if b < a {
		a, b = b, a
	}
	return Pair{a, b}, nil
}

// ValidID reports whether id can take part in a key without ambiguity.
func ValidID(id string) bool { return !strings.Contains(id, Separator) }

// Derive returns the conversation key shared by a and b.
// Derive(a, b) == Derive(b, a) for every valid pair.
func Derive(a, b string) (string, error) {
	p, err := Participants(a, b)
	if err != nil {
		return "", err
	}
	return p.Key(), nil
}

// Key joins the pair with Separator.
func (p Pair) Key() string { return p[0] + Separator + p[1] }

// Peer returns the other participant of the pair, or "" when self is not a member.
func (p Pair) Peer(self string) string {
	switch self {
	case p[0]:
		return p[1]
	case p[1]:
		return p[0]
	}
	return ""
}

// Has reports whether id is one of the two participants.
func (p Pair) Has(id string) bool { return id == p[0] || id == p[1] }
