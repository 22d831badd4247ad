// Package redact implements the content sanitization pipeline. Every
// payload crossing the trust boundary is scanned against a configurable
// policy set; matches are redacted, blocked, or recorded depending on
// the policy action.
package redact

import (
	"fmt"
	"regexp"
)

// PolicyType classifies what a policy detects.
type PolicyType string

const (
	TypeSecret PolicyType = "secret"
	TypePII    PolicyType = "pii"
	TypeCustom PolicyType = "custom"
)

// Action is what happens when a pattern matches.
type Action string

const (
	ActionRedact Action = "redact"
	ActionBlock  Action = "block"
	ActionWarn   Action = "warn"
)

// Severity grades a finding.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Policy is a named detection rule. Patterns are compiled once at
// registration; Scan never compiles a regex.
type Policy struct {
	ID       string     `json:"id" yaml:"id"`
	Name     string     `json:"name" yaml:"name"`
	Type     PolicyType `json:"type" yaml:"type"`
	Enabled  bool       `json:"enabled" yaml:"enabled"`
	Patterns []string   `json:"patterns" yaml:"patterns"`
	Action   Action     `json:"action" yaml:"action"`
	Severity Severity   `json:"severity" yaml:"severity"`

	compiled []*regexp.Regexp
}

// compile precompiles the policy's patterns.
func (p *Policy) compile() error {
	p.compiled = p.compiled[:0]
	for _, pat := range p.Patterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return fmt.Errorf("policy %s: pattern %q: %w", p.ID, pat, err)
		}
		p.compiled = append(p.compiled, re)
	}
	return nil
}

// placeholder returns the replacement text for a redacting policy.
func (p *Policy) placeholder() string {
	switch p.Type {
	case TypeSecret:
		return "[REDACTED_SECRET]"
	case TypePII:
		return "[REDACTED_PII]"
	default:
		return "[REDACTED]"
	}
}

// defaultPolicies is the out-of-box policy set, in insertion order.
func defaultPolicies() []*Policy {
	return []*Policy{
		{
			ID:      "secret-aws-access-key",
			Name:    "AWS access key",
			Type:    TypeSecret,
			Enabled: true,
			Patterns: []string{
				`AKIA[0-9A-Z]{16}`,
			},
			Action:   ActionBlock,
			Severity: SeverityCritical,
		},
		{
			ID:      "secret-private-key",
			Name:    "Private key header",
			Type:    TypeSecret,
			Enabled: true,
			Patterns: []string{
				`-----BEGIN (RSA |EC |DSA )?PRIVATE KEY-----`,
			},
			Action:   ActionBlock,
			Severity: SeverityCritical,
		},
		{
			ID:      "secret-oauth-token",
			Name:    "OAuth token",
			Type:    TypeSecret,
			Enabled: true,
			Patterns: []string{
				`ya29\.[0-9A-Za-z\-_]+`,
				`gho_[0-9A-Za-z]{36}`,
			},
			Action:   ActionBlock,
			Severity: SeverityCritical,
		},
		{
			ID:      "secret-api-key-assignment",
			Name:    "API key assignment",
			Type:    TypeSecret,
			Enabled: true,
			Patterns: []string{
				`(?i)api[_-]?key['"]?\s*[:=]\s*['"]?[A-Za-z0-9]{20,}`,
			},
			Action:   ActionRedact,
			Severity: SeverityHigh,
		},
		{
			ID:      "pii-credit-card",
			Name:    "Credit card number",
			Type:    TypePII,
			Enabled: true,
			Patterns: []string{
				`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`,
			},
			Action:   ActionRedact,
			Severity: SeverityHigh,
		},
		{
			ID:      "pii-ssn",
			Name:    "Social security number",
			Type:    TypePII,
			Enabled: true,
			Patterns: []string{
				`\b\d{3}-\d{2}-\d{4}\b`,
			},
			Action:   ActionRedact,
			Severity: SeverityHigh,
		},
		{
			ID:      "pii-email",
			Name:    "Email address",
			Type:    TypePII,
			Enabled: true,
			Patterns: []string{
				`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`,
			},
			Action:   ActionRedact,
			Severity: SeverityMedium,
		},
		{
			ID:      "pii-ipv4",
			Name:    "IPv4 address",
			Type:    TypePII,
			Enabled: false, // Too noisy for most codebases; opt-in.
			Patterns: []string{
				`\b(?:\d{1,3}\.){3}\d{1,3}\b`,
			},
			Action:   ActionWarn,
			Severity: SeverityLow,
		},
	}
}
