package scanner

import "regexp"

// defaultRules returns the built-in pattern registry. Categories and
// severities follow the taxonomy in spec.md §8: instruction-override
// attempts are critical, role-play jailbreaks and system-prompt
// exfiltration probes are high, softer coercion, encoded payloads and
// injection delimiters are medium/low.
func defaultRules() []Rule {
	return []Rule{
		{
			ID:       "JB-001",
			Category: "instruction_override",
			Pattern:  regexp.MustCompile(`(?i)ignore (all|any|the) (previous|prior|above) instructions`),
			Severity: SeverityCritical,
		},
		{
			ID:       "JB-002",
			Category: "instruction_override",
			Pattern:  regexp.MustCompile(`(?i)disregard (everything|all) (you('ve| have) been told|above)`),
			Severity: SeverityCritical,
		},
		{
			ID:       "JB-003",
			Category: "role_play_jailbreak",
			Pattern:  regexp.MustCompile(`(?i)\b(DAN|do anything now)\b`),
			Severity: SeverityHigh,
		},
		{
			ID:       "JB-004",
			Category: "role_play_jailbreak",
			Pattern:  regexp.MustCompile(`(?i)you are now (in )?(developer|unrestricted|jailbreak) mode`),
			Severity: SeverityHigh,
		},
		{
			ID:       "JB-005",
			Category: "system_prompt_exfiltration",
			Pattern:  regexp.MustCompile(`(?i)(reveal|print|repeat|output) (your|the) (system prompt|instructions|guidelines)`),
			Severity: SeverityHigh,
		},
		{
			ID:       "JB-006",
			Category: "authority_coercion",
			Pattern:  regexp.MustCompile(`(?i)(as|i am) (the )?(admin|developer|owner) (of this (system|agent)|override)`),
			Severity: SeverityMedium,
		},
		{
			ID:       "JB-007",
			Category: "financial_coercion",
			Pattern:  regexp.MustCompile(`(?i)(guaranteed|risk[- ]free) (100x|1000x|moon) (return|gains)`),
			Severity: SeverityMedium,
		},
		{
			ID:       "JB-008",
			Category: "urgency_manipulation",
			Pattern:  regexp.MustCompile(`(?i)(act|execute|buy) (now|immediately)[,.]? (before|or) (it'?s too late|you miss out)`),
			Severity: SeverityLow,
		},
		{
			ID:       "JB-009",
			Category: "encoded_payload",
			Pattern:  regexp.MustCompile(`(?i)\\u00[0-9a-f]{2}`),
			Severity: SeverityMedium,
		},
		{
			ID:       "JB-010",
			Category: "injection_delimiter",
			Pattern:  regexp.MustCompile(`(?i)\[\s*(system|assistant)\s*\]\s*:`),
			Severity: SeverityMedium,
		},
	}
}
