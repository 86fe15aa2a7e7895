package policy

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// Rules is the organization policy a contract is checked against.
type Rules struct {
	RequiredClauses    []string   `yaml:"required_clauses"`
	ForbiddenTerms     []string   `yaml:"forbidden_terms"`
	ApprovalThresholds Thresholds `yaml:"approval_thresholds"`
}

type Thresholds struct {
	ContractValue    float64 `yaml:"contract_value"`
	TermLengthMonths int     `yaml:"term_length_months"`
}

// Report is the outcome of a compliance check.
type Report struct {
	Compliant         bool     `json:"compliant"`
	Violations        []string `json:"violations"`
	Warnings          []string `json:"warnings"`
	RequiredApprovals []string `json:"required_approvals"`
}

// Checker applies a rule set.
type Checker struct {
	rules Rules
}

// Default returns the built-in rule set.
func Default() Rules {
	r, err := Parse(defaultRules)
	if err != nil {
		panic(fmt.Sprintf("embedded policy rules: %v", err))
	}
	return r
}

// Parse decodes YAML rules.
func Parse(data []byte) (Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("parse policy rules: %w", err)
	}
	return r, nil
}

// Load reads rules from path, or the built-in rules when path is empty.
func Load(path string) (*Checker, error) {
	if path == "" {
		return New(Default()), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return New(r), nil
}

func New(rules Rules) *Checker {
	return &Checker{rules: rules}
}

func (c *Checker) Rules() Rules { return c.rules }

var (
	amountRE = regexp.MustCompile(`(?i)(?:\$|usd\s?|eur\s?|€|£)\s?(\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?\s*(k|thousand|m|million)?\b`)
	termRE   = regexp.MustCompile(`(?i)\b(\d+)\s*(?:\(\w+\)\s*)?(month|year)s?\b`)
)

// Check tests text against the rules. Clause names match with underscores
// read as spaces, so governing_law matches "governing law".
func (c *Checker) Check(text string) Report {
	lower := strings.ToLower(text)
	report := Report{
		Compliant:         true,
		Violations:        []string{},
		Warnings:          []string{},
		RequiredApprovals: []string{},
	}

	for _, clause := range c.rules.RequiredClauses {
		if !strings.Contains(lower, strings.ReplaceAll(strings.ToLower(clause), "_", " ")) {
			report.Violations = append(report.Violations, "Missing required clause: "+clause)
			report.Compliant = false
		}
	}
	for _, term := range c.rules.ForbiddenTerms {
		if strings.Contains(lower, strings.ToLower(term)) {
			report.Violations = append(report.Violations, "Contains forbidden term: "+term)
			report.Compliant = false
		}
	}

	if t := c.rules.ApprovalThresholds.ContractValue; t > 0 && ContractValue(text) > t {
		report.RequiredApprovals = append(report.RequiredApprovals, "finance_approval")
	}
	if t := c.rules.ApprovalThresholds.TermLengthMonths; t > 0 && TermMonths(text) > t {
		report.RequiredApprovals = append(report.RequiredApprovals, "legal_approval")
	}
	if strings.Contains(lower, "[") && strings.Contains(lower, "]") {
		report.Warnings = append(report.Warnings, "Contract contains unfilled placeholders")
	}
	return report
}

// ContractValue returns the largest currency amount mentioned in text.
func ContractValue(text string) float64 {
	var best float64
	for _, m := range amountRE.FindAllStringSubmatch(text, -1) {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		switch strings.ToLower(m[2]) {
		case "k", "thousand":
			v *= 1_000
		case "m", "million":
			v *= 1_000_000
		}
		if v > best {
			best = v
		}
	}
	return best
}

// TermMonths returns the longest duration mentioned in text, in months.
func TermMonths(text string) int {
	var best int
	for _, m := range termRE.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if strings.EqualFold(m[2], "year") {
			n *= 12
		}
		if n > best {
			best = n
		}
	}
	return best
}
