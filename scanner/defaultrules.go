package scanner

import "regexp"

// DefaultRules returns the baseline prompt-injection and coercion
// patterns registered against every input this agent accepts before
// it reaches an analyzer or a write path: instruction-override
// attempts, key/secret exfiltration requests, and role-reassignment
// jailbreaks.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:       "INJ-IGNORE-PRIOR",
			Category: "instruction_override",
			Pattern:  regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+instructions`),
			Severity: SeverityHigh,
		},
		{
			ID:       "INJ-SYSTEM-OVERRIDE",
			Category: "instruction_override",
			Pattern:  regexp.MustCompile(`(?i)(you are now|act as|pretend to be)\s+(a\s+)?(developer|system|admin|root)\s*(mode)?`),
			Severity: SeverityHigh,
		},
		{
			ID:       "EXFIL-PRIVATE-KEY",
			Category: "key_exfiltration",
			Pattern:  regexp.MustCompile(`(?i)(reveal|print|output|show|send)\s+(your\s+)?(private\s+key|seed\s+phrase|session\s+key|api\s+key)`),
			Severity: SeverityCritical,
		},
		{
			ID:       "COERCE-BYPASS-LIMIT",
			Category: "coercion",
			Pattern:  regexp.MustCompile(`(?i)(bypass|disable|skip)\s+(the\s+)?(budget|velocity|safety|kill.switch)\s*(cap|limit|check)?`),
			Severity: SeverityCritical,
		},
		{
			ID:       "COERCE-APPROVE-ANYWAY",
			Category: "coercion",
			Pattern:  regexp.MustCompile(`(?i)approve\s+(this\s+)?(anyway|regardless|no matter what)`),
			Severity: SeverityMedium,
		},
	}
}
