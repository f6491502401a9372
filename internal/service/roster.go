package service

import "strings"

// Roster is the static admin list, fixed at process start.
type Roster []string

func (r Roster) Contains(userID string) bool {
	for _, id := range r {
		if id == userID {
			return true
		}
	}
	return false
}

// Mentions renders every admin as a mention, space separated.
func (r Roster) Mentions() string {
	parts := make([]string, len(r))
	for i, id := range r {
		parts[i] = Mention(id)
	}
	return strings.Join(parts, " ")
}

func Mention(userID string) string {
	return "<@" + userID + ">"
}
