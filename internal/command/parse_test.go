// ABOUTME: Tests for mention and emoji token parsing
// ABOUTME: Covers both mention forms, colon runs, skin tones, and rejection cases

package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMention(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "bare", input: "<@U123>", want: "U123"},
		{name: "with display name", input: "<@U123|alice>", want: "U123"},
		{name: "surrounding space", input: "  <@W42> ", want: "W42"},
		{name: "empty display name", input: "<@U123|>", want: "U123"},
		{name: "plain text", input: "alice", wantErr: true},
		{name: "at sign only", input: "@alice", wantErr: true},
		{name: "channel mention", input: "<#C123|general>", wantErr: true},
		{name: "empty id", input: "<@>", wantErr: true},
		{name: "empty id with name", input: "<@|alice>", wantErr: true},
		{name: "unterminated", input: "<@U123", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMention(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMention_BothFormsAgree(t *testing.T) {
	a, err := ParseMention("<@U123>")
	require.NoError(t, err)
	b, err := ParseMention("<@U123|alice>")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNormalizeEmojis(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
		want   []string
	}{
		{name: "plain names", tokens: []string{"fire", "100"}, want: []string{"fire", "100"}},
		{name: "colon delimited", tokens: []string{":fire:", ":eyes:"}, want: []string{"fire", "eyes"}},
		{name: "concatenated run", tokens: []string{":fire::eyes::100:"}, want: []string{"fire", "eyes", "100"}},
		{name: "mixed", tokens: []string{"fire", ":eyes:100"}, want: []string{"fire", "eyes", "100"}},
		{name: "duplicates keep first", tokens: []string{":eyes:", "fire", "eyes", ":fire:"}, want: []string{"eyes", "fire"}},
		{name: "skin tone", tokens: []string{":thumbsup::skin-tone-2:"}, want: []string{"thumbsup::skin-tone-2"}},
		{name: "skin tone then more", tokens: []string{":wave::skin-tone-3::fire:"}, want: []string{"wave::skin-tone-3", "fire"}},
		{name: "untoned and toned differ", tokens: []string{"wave", ":wave::skin-tone-3:"}, want: []string{"wave", "wave::skin-tone-3"}},
		{name: "custom emoji chars", tokens: []string{":party-parrot:", ":+1:", ":simple_smile:"}, want: []string{"party-parrot", "+1", "simple_smile"}},
		{name: "empty tokens skipped", tokens: []string{"::", "", ":fire:"}, want: []string{"fire"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeEmojis(tt.tokens)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeEmojis_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
	}{
		{name: "no tokens", tokens: nil},
		{name: "only colons", tokens: []string{":", "::::"}},
		{name: "mention as emoji", tokens: []string{"<@U123>"}},
		{name: "punctuation", tokens: []string{"fire!"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeEmojis(tt.tokens)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
		})
	}
}
