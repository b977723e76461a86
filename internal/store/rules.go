// ABOUTME: EmojiSet and Rules value types for the per-team subscription document
// ABOUTME: Rules maps channel -> user -> emoji set and is persisted as one JSON record per team

package store

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
)

// EmojiSet is a sorted, duplicate-free list of reaction names (without colons).
// The zero value is the empty set.
type EmojiSet []string

// NewEmojiSet builds a set from names, dropping empties and duplicates.
func NewEmojiSet(names ...string) EmojiSet {
	seen := make(map[string]struct{}, len(names))
	set := make(EmojiSet, 0, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		set = append(set, name)
	}
	if len(set) == 0 {
		return nil
	}
	sort.Strings(set)
	return set
}

// Len returns the number of emojis in the set.
func (s EmojiSet) Len() int {
	return len(s)
}

// Contains reports whether name is in the set.
func (s EmojiSet) Contains(name string) bool {
	i := sort.SearchStrings(s, name)
	return i < len(s) && s[i] == name
}

// Union returns a new set holding the members of both sets.
func (s EmojiSet) Union(other EmojiSet) EmojiSet {
	merged := make([]string, 0, len(s)+len(other))
	merged = append(merged, s...)
	merged = append(merged, other...)
	return NewEmojiSet(merged...)
}

// Equal reports whether both sets hold the same members.
func (s EmojiSet) Equal(other EmojiSet) bool {
	return slices.Equal(s, other)
}

// MarshalJSON writes the set as a JSON array, never null.
func (s EmojiSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}

// UnmarshalJSON accepts a flat array of names. Records written by the old
// Node service appended whole arrays instead of names, so nested arrays are
// flattened.
func (s *EmojiSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := collectNames(data, &names); err != nil {
		return err
	}
	*s = NewEmojiSet(names...)
	return nil
}

func collectNames(data []byte, out *[]string) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		var name string
		if strErr := json.Unmarshal(data, &name); strErr != nil {
			return fmt.Errorf("decoding emoji set: %w", err)
		}
		*out = append(*out, name)
		return nil
	}
	for _, item := range items {
		if err := collectNames(item, out); err != nil {
			return err
		}
	}
	return nil
}

// Rules is the whole subscription document for one team:
// channel ID -> user ID -> emoji set.
type Rules map[string]map[string]EmojiSet

// Lookup returns the emoji set bound to (channel, user), or nil.
func (r Rules) Lookup(channelID, userID string) EmojiSet {
	users, ok := r[channelID]
	if !ok {
		return nil
	}
	return users[userID]
}

// Add unions emojis into the rule for (channel, user), creating the path if
// needed. Reports whether the document changed.
func (r Rules) Add(channelID, userID string, emojis EmojiSet) bool {
	if emojis.Len() == 0 {
		return false
	}
	users, ok := r[channelID]
	if !ok {
		users = make(map[string]EmojiSet)
		r[channelID] = users
	}
	current := users[userID]
	merged := current.Union(emojis)
	if merged.Equal(current) {
		return false
	}
	users[userID] = merged
	return true
}

// Remove deletes the rule for (channel, user) and prunes the channel if it
// becomes empty. Reports whether anything was deleted.
func (r Rules) Remove(channelID, userID string) bool {
	users, ok := r[channelID]
	if !ok {
		return false
	}
	if _, ok := users[userID]; !ok {
		return false
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(r, channelID)
	}
	return true
}

// Prune drops empty emoji sets and empty channels. An empty set is the same
// as no rule.
func (r Rules) Prune() {
	for channelID, users := range r {
		for userID, set := range users {
			if set.Len() == 0 {
				delete(users, userID)
			}
		}
		if len(users) == 0 {
			delete(r, channelID)
		}
	}
}

// Clone returns a deep copy.
func (r Rules) Clone() Rules {
	out := make(Rules, len(r))
	for channelID, users := range r {
		copied := make(map[string]EmojiSet, len(users))
		for userID, set := range users {
			copied[userID] = slices.Clone(set)
		}
		out[channelID] = copied
	}
	return out
}

// decodeRules parses a persisted team record. An empty record is an empty
// document.
func decodeRules(data []byte) (Rules, error) {
	rules := make(Rules)
	if len(data) == 0 {
		return rules, nil
	}
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("decoding rules: %w", err)
	}
	if rules == nil {
		rules = make(Rules)
	}
	rules.Prune()
	return rules, nil
}

// encodeRules serializes a team document. encoding/json sorts map keys, so
// the output is stable.
func encodeRules(rules Rules) ([]byte, error) {
	data, err := json.Marshal(rules)
	if err != nil {
		return nil, fmt.Errorf("encoding rules: %w", err)
	}
	return data, nil
}
