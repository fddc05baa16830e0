// Package marker implements the machine-readable `key=value,` tokens embedded
// in ticket descriptions. The tokens are the durable correlation state between
// tracker tickets and remote review discussions, so updates are targeted
// single-token substitutions that leave every other byte of the description
// untouched.
package marker

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	KeyMergeRequestURL  = "_merge_request_url"
	KeyDiscussionID     = "_discussion_id"
	KeyType             = "_type"
	KeyBlockingResolved = "_blocking_discussions_resolved"
)

// Null is the literal token recorded when a marker has no value.
const Null = "null"

// Block is the parsed marker state of a remark ticket description.
type Block struct {
	DiscussionID     string
	Type             string // Null when the discussion has no note type
	BlockingResolved string // "true", "false", or "" when the marker is absent
}

// Token renders a single marker token. Values never contain commas; the
// trailing comma delimits the value so substring searches on a token cannot
// match a longer id by prefix.
func Token(key, value string) string {
	return fmt.Sprintf("%s=%s,", key, value)
}

// Format renders a block as marker lines for embedding into a description.
// The blocking marker is only written when present (GitLab discussions).
func Format(b Block) string {
	lines := []string{
		Token(KeyDiscussionID, b.DiscussionID),
		Token(KeyType, b.Type),
	}
	if b.BlockingResolved != "" {
		lines = append(lines, Token(KeyBlockingResolved, b.BlockingResolved))
	}
	return strings.Join(lines, "\n")
}

// Parse extracts the marker block from a description and returns it together
// with the description text with all marker tokens removed.
func Parse(text string) (Block, string) {
	var b Block
	b.DiscussionID, _ = Value(text, KeyDiscussionID)
	b.Type, _ = Value(text, KeyType)
	b.BlockingResolved, _ = Value(text, KeyBlockingResolved)

	rest := text
	for _, key := range []string{KeyDiscussionID, KeyType, KeyBlockingResolved} {
		rest = tokenPattern(key).ReplaceAllString(rest, "")
	}
	return b, strings.TrimRight(rest, "\n")
}

// Value extracts the value of one marker key from a description.
func Value(text, key string) (string, bool) {
	m := tokenPattern(key).FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Has reports whether the description carries the marker key at all.
func Has(text, key string) bool {
	_, ok := Value(text, key)
	return ok
}

// Set replaces the value of one marker key in place, preserving all
// surrounding text. A description without the key is returned unchanged; the
// second result reports whether a substitution happened.
func Set(text, key, value string) (string, bool) {
	re := tokenPattern(key)
	if !re.MatchString(text) {
		return text, false
	}
	return re.ReplaceAllString(text, Token(key, value)), true
}

func tokenPattern(key string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(key) + `=([^,\n]*),`)
}
