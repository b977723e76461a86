// ABOUTME: Parsing helpers for user mentions and emoji tokens
// ABOUTME: Normalizes colon-delimited reaction names into a de-duplicated ordered list

package command

import (
	"strings"
	"unicode"
)

const skinTonePrefix = "skin-tone-"

// ParseMention extracts the user ID from a Slack mention. Both <@U123> and
// <@U123|alice> resolve to U123.
func ParseMention(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "<@") || !strings.HasSuffix(raw, ">") {
		return "", invalid("I couldn't find a user in " + quote(raw) + ". Mention them like @someone.")
	}

	body := raw[2 : len(raw)-1]
	if i := strings.IndexByte(body, '|'); i >= 0 {
		body = body[:i]
	}
	if body == "" || strings.IndexFunc(body, unicode.IsSpace) >= 0 || strings.ContainsAny(body, "<>@") {
		return "", invalid("I couldn't find a user in " + quote(raw) + ". Mention them like @someone.")
	}
	return body, nil
}

// NormalizeEmojis strips colon delimiters from the given tokens and splits
// concatenated runs such as ":fire::eyes:" back into separate names. Skin tone
// modifiers stay attached to the emoji they follow. Duplicates are dropped,
// keeping the first occurrence.
func NormalizeEmojis(tokens []string) ([]string, error) {
	var names []string
	for _, tok := range tokens {
		parts := strings.FieldsFunc(tok, func(r rune) bool {
			return r == ':' || unicode.IsSpace(r)
		})

		var merged []string
		for _, part := range parts {
			if !validEmojiName(part) {
				return nil, invalid(quote(part) + " doesn't look like an emoji name.")
			}
			last := len(merged) - 1
			if strings.HasPrefix(part, skinTonePrefix) && last >= 0 && !toned(merged[last]) {
				// Slack names toned reactions "thumbsup::skin-tone-2".
				merged[last] += "::" + part
				continue
			}
			merged = append(merged, part)
		}
		names = append(names, merged...)
	}

	if len(names) == 0 {
		return nil, invalid("Tell me which emoji to react with, like :fire:.")
	}
	return dedupe(names), nil
}

func dedupe(names []string) []string {
	out := names[:0]
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func validEmojiName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
		case r == '-', r == '_', r == '+', r == '\'', r == '.':
		default:
			return false
		}
	}
	return true
}

func quote(s string) string {
	if s == "" {
		return "that"
	}
	return "`" + s + "`"
}

func toned(name string) bool {
	return strings.HasPrefix(name, skinTonePrefix) || strings.Contains(name, "::")
}
