// Package scanner classifies free-text input for prompt-injection and
// coercion patterns before it reaches any agent or write path.
package scanner

import (
	"encoding/base64"
	"html"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Severity ranks how dangerous a matched pattern is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

func (s Severity) atLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

// Rule is one registered pattern the scanner matches against.
type Rule struct {
	ID       string
	Category string
	Pattern  *regexp.Regexp
	Severity Severity
}

// Match describes one rule hit against the normalized input.
type Match struct {
	RuleID   string `json:"ruleId"`
	Category string `json:"category"`
	Severity Severity `json:"severity"`
	Excerpt  string `json:"excerpt"`
}

// Result is the outcome of scanning one piece of text.
type Result struct {
	IsClean         bool     `json:"isClean"`
	Matches         []Match  `json:"matches"`
	HighestSeverity Severity `json:"highestSeverity"`
	Blocked         bool     `json:"blocked"`
}

// Scanner holds a registry of rules and is safe for concurrent use.
// It is deterministic, idempotent, and has no external dependency — it
// never performs I/O.
type Scanner struct {
	mu    sync.RWMutex
	rules map[string]*Rule
	order []string // insertion order, for deterministic export
}

// New returns a Scanner pre-loaded with the default rule registry.
func New() *Scanner {
	s := &Scanner{rules: make(map[string]*Rule)}
	for _, r := range defaultRules() {
		s.AddRule(r)
	}
	return s
}

// AddRule registers or replaces a rule at runtime.
func (s *Scanner) AddRule(r Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rules[r.ID]; !exists {
		s.order = append(s.order, r.ID)
	}
	cp := r
	s.rules[r.ID] = &cp
}

// RemoveRule deletes a rule by id. Returns false if it wasn't registered.
func (s *Scanner) RemoveRule(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return false
	}
	delete(s.rules, id)
	for i, rid := range s.order {
		if rid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// ExportedRule is the portable, serializable form of a Rule.
type ExportedRule struct {
	ID       string   `json:"id"`
	Category string   `json:"category"`
	Pattern  string   `json:"pattern"`
	Severity Severity `json:"severity"`
}

// Export returns every registered rule in a portable, serialized form,
// in stable (insertion) order.
func (s *Scanner) Export() []ExportedRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ExportedRule, 0, len(s.order))
	for _, id := range s.order {
		r := s.rules[id]
		out = append(out, ExportedRule{
			ID:       r.ID,
			Category: r.Category,
			Pattern:  r.Pattern.String(),
			Severity: r.Severity,
		})
	}
	return out
}

// Scan classifies text against the registered rule set. It is pure and
// deterministic: Scan(text) == Scan(text) and Scan(Normalize(text)) ==
// Scan(text) for any text, because Normalize is idempotent.
func (s *Scanner) Scan(text string) Result {
	normalized := Normalize(text)

	s.mu.RLock()
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	rules := make(map[string]*Rule, len(s.rules))
	for k, v := range s.rules {
		rules[k] = v
	}
	s.mu.RUnlock()

	res := Result{IsClean: true, HighestSeverity: SeverityLow}
	for _, id := range ids {
		r, ok := rules[id]
		if !ok {
			continue
		}
		loc := r.Pattern.FindStringIndex(normalized)
		if loc == nil {
			continue
		}
		res.IsClean = false
		excerpt := normalized[loc[0]:loc[1]]
		if len(excerpt) > 80 {
			excerpt = excerpt[:80]
		}
		res.Matches = append(res.Matches, Match{
			RuleID:   r.ID,
			Category: r.Category,
			Severity: r.Severity,
			Excerpt:  excerpt,
		})
		if r.Severity.atLeast(res.HighestSeverity) || len(res.Matches) == 1 {
			res.HighestSeverity = r.Severity
		}
	}
	if len(res.Matches) == 0 {
		res.HighestSeverity = ""
	}
	res.Blocked = res.HighestSeverity.atLeast(SeverityHigh)
	return res
}

var (
	zeroWidthPattern = regexp.MustCompile(`[\x{200B}-\x{200D}\x{FEFF}\x{00AD}]`)
	base64Marker     = regexp.MustCompile(`(?i)base64:\s*([A-Za-z0-9+/=]{8,})`)
	whitespaceRun    = regexp.MustCompile(`\s+`)
	numericEntity    = regexp.MustCompile(`&#x?[0-9A-Fa-f]+;`)
)

// Normalize prepares text for matching: NFC-normalize, strip zero-width
// and soft-hyphen code points, decode percent- and numeric-HTML-entity
// escapes, inline any marked-base64 segment's decoded form, and collapse
// whitespace runs. Normalize is idempotent.
func Normalize(text string) string {
	out := norm.NFC.String(text)
	out = zeroWidthPattern.ReplaceAllString(out, "")

	if decoded, err := percentDecode(out); err == nil {
		out = decoded
	}
	out = html.UnescapeString(out)
	out = numericEntity.ReplaceAllStringFunc(out, func(m string) string {
		return html.UnescapeString(m)
	})

	out = base64Marker.ReplaceAllStringFunc(out, func(m string) string {
		sub := base64Marker.FindStringSubmatch(m)
		if len(sub) < 2 {
			return m
		}
		if dec, err := base64.StdEncoding.DecodeString(sub[1]); err == nil && isPrintable(dec) {
			return m + " " + string(dec)
		}
		if dec, err := base64.RawStdEncoding.DecodeString(sub[1]); err == nil && isPrintable(dec) {
			return m + " " + string(dec)
		}
		return m
	})

	out = whitespaceRun.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

func isPrintable(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, r := range string(b) {
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// percentDecode decodes %XX escapes without requiring a full URL, since
// scanned text is free-form and not necessarily a valid URL component.
func percentDecode(s string) (string, error) {
	if !strings.Contains(s, "%") {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			v := hexVal(s[i+1])<<4 | hexVal(s[i+2])
			b.WriteByte(byte(v))
			i += 2
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String(), nil
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexVal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	default:
		return int(c-'A') + 10
	}
}
