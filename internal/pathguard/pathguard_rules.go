package pathguard

import "strings"

// RuleName identifies a single check.
type RuleName string

const (
	RuleMaxLength     RuleName = "max_length"     // raw input longer than the limit
	RuleDecode        RuleName = "decode"         // malformed escape, bad UTF-8 or no decode fixpoint
	RuleNulByte       RuleName = "nul_byte"       // NUL anywhere in the path
	RuleConfusableDot RuleName = "confusable_dot" // a Unicode look-alike of '.'
	RuleDriveLetter   RuleName = "drive_letter"   // "C:" at the start, optionally after '/'
	RuleBackslash     RuleName = "backslash"      // '\' anywhere
	RuleDotRun        RuleName = "dot_run"        // three or more consecutive dots
	RuleShellMeta     RuleName = "shell_meta"     // shell metacharacters such as ';' or "$("
	RuleTraversal     RuleName = "traversal"      // a ".." segment
)

// Rule is a predicate over a normalized path. Reject returns true when the path must be refused.
type Rule struct {
	Name   RuleName
	Reason string
	Reject func(normalized string) bool
}

// confusableDots look like '.' and can be used to disguise "..".
var confusableDots = []rune{
	'\uFF0E', // fullwidth full stop
	'\u2024', // one dot leader
	'\u3002', // ideographic full stop
	'\uFE52', // small full stop
	'\uFF61', // halfwidth ideographic full stop
}

var shellMeta = []string{"<(", "$(", ";", "|", "`", "$"}

// rules run in order after decoding and normalization.
var rules = []Rule{
	{Name: RuleNulByte, Reason: "contains a NUL byte", Reject: HasNulByte},
	{Name: RuleConfusableDot, Reason: "contains a look-alike dot", Reject: HasConfusableDot},
	{Name: RuleDriveLetter, Reason: "starts with a drive letter", Reject: HasDriveLetter},
	{Name: RuleBackslash, Reason: "contains a backslash", Reject: HasBackslash},
	{Name: RuleDotRun, Reason: "contains three or more consecutive dots", Reject: HasDotRun},
	{Name: RuleShellMeta, Reason: "contains a shell metacharacter", Reject: HasShellMeta},
	{Name: RuleTraversal, Reason: "contains a '..' segment", Reject: HasTraversal},
}

// Rules returns the post-normalization rules in evaluation order.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// HasNulByte reports a NUL byte anywhere in s.
func HasNulByte(s string) bool {
	return strings.IndexByte(s, 0) >= 0
}

// HasConfusableDot reports a character that renders like '.' but is not one.
func HasConfusableDot(s string) bool {
	return strings.ContainsFunc(s, func(r rune) bool {
		for _, dot := range confusableDots {
			if r == dot {
				return true
			}
		}
		return false
	})
}

// HasDriveLetter matches "C:..." and "/C:...".
func HasDriveLetter(s string) bool {
	s = strings.TrimPrefix(s, "/")
	if len(s) < 2 {
		return false
	}
	c := s[0]
	isLetter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
	return isLetter && s[1] == ':'
}

// HasBackslash reports a '\\' anywhere in s.
func HasBackslash(s string) bool {
	return strings.IndexByte(s, '\\') >= 0
}

// HasDotRun reports three or more consecutive dots.
func HasDotRun(s string) bool {
	return strings.Contains(s, "...")
}

// HasShellMeta reports any of the shell metacharacters ";", "|", "`", "$", "<(" and "$(".
func HasShellMeta(s string) bool {
	for _, m := range shellMeta {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// HasTraversal reports a ".." segment bounded by '/' or the ends of the string.
func HasTraversal(s string) bool {
	for _, seg := range strings.Split(s, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}
