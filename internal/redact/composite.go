package redact

import (
	"regexp"
)

// Composite placeholders are visually distinct from the per-policy ones
// so gateway consumers can tell which pipeline sanitized the payload.
const (
	compositeSecretPlaceholder = "***REDACTED_SECRET***"
	compositePIIPlaceholder    = "***REDACTED_PII***"
)

// compositePattern is one entry of the gateway-facing composite redactor.
type compositePattern struct {
	name        string
	typ         PolicyType
	re          *regexp.Regexp
	placeholder string
}

// Composite is the fixed, wide-coverage pattern set merged into every
// Redactor scan. It supplements the policy set with token formats that
// commonly leak through prompts: GitHub tokens, password assignments,
// JWTs, bearer headers, and US phone numbers. All patterns are compiled
// once at construction.
type Composite struct {
	patterns []compositePattern
}

// NewComposite builds the composite redactor.
func NewComposite() *Composite {
	mk := func(name string, typ PolicyType, expr string) compositePattern {
		ph := compositeSecretPlaceholder
		if typ == TypePII {
			ph = compositePIIPlaceholder
		}
		return compositePattern{name: name, typ: typ, re: regexp.MustCompile(expr), placeholder: ph}
	}
	return &Composite{
		patterns: []compositePattern{
			mk("AWS access key", TypeSecret, `AKIA[0-9A-Z]{16}`),
			mk("Private key header", TypeSecret, `-----BEGIN (RSA |EC |DSA )?PRIVATE KEY-----`),
			mk("GitHub token", TypeSecret, `gh[pousr]_[A-Za-z0-9_]{36,}`),
			mk("Google OAuth token", TypeSecret, `ya29\.[0-9A-Za-z\-_]+`),
			mk("JWT", TypeSecret, `\beyJ[A-Za-z0-9_\-]+\.[A-Za-z0-9_\-]+\.[A-Za-z0-9_\-]+\b`),
			mk("Bearer token", TypeSecret, `(?i)bearer\s+[A-Za-z0-9\-._~+/]{16,}=*`),
			mk("API key assignment", TypeSecret, `(?i)api[_-]?key['"]?\s*[:=]\s*['"]?[A-Za-z0-9]{20,}`),
			mk("Password assignment", TypeSecret, `(?i)(password|passwd|pwd)['"]?\s*[:=]\s*['"]?[^\s'"]{8,}`),
			mk("Credit card number", TypePII, `\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`),
			mk("Social security number", TypePII, `\b\d{3}-\d{2}-\d{4}\b`),
			mk("Email address", TypePII, `\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`),
			mk("US phone number", TypePII, `\b(\+1[ .\-]?)?(\(\d{3}\)|\d{3})[ .\-]?\d{3}[ .\-]?\d{4}\b`),
		},
	}
}

// Scan redacts every composite pattern match. Composite scanning never
// blocks; the gateway reports findings and forwards sanitized content.
func (c *Composite) Scan(content string) *ScanResult {
	result := &ScanResult{
		Original: content,
		Redacted: content,
		Findings: []Finding{},
	}

	var pending []replace
	for _, p := range c.patterns {
		for _, m := range p.re.FindAllStringIndex(content, -1) {
			result.Findings = append(result.Findings, Finding{
				Type:     p.typ,
				Location: locate(content, m[0], m[1]),
				Severity: SeverityHigh,
				Message:  p.name + " detected",
				Policy:   "composite",
			})
			pending = append(pending, replace{start: m[0], end: m[1], placeholder: p.placeholder})
		}
	}

	result.Redacted = applyReplacements(content, pending)
	return result
}
