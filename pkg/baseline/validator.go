package baseline

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ValidationResult is the outcome of validating one module payload.
// IsComplete drives progress indicators only; IsValid alone gates submission.
type ValidationResult struct {
	IsComplete bool     `json:"isComplete"`
	IsValid    bool     `json:"isValid"`
	Errors     []string `json:"errors,omitempty"`
}

// SubmitCheck aggregates per-module validation at submit time.
type SubmitCheck struct {
	CanPublish bool      `json:"canPublish"`
	Blockers   []Blocker `json:"blockers,omitempty"`
}

// ModuleValidator validates module payloads. Per-module schemas are pluggable;
// the workflow only depends on the boolean contract.
type ModuleValidator interface {
	Validate(moduleType ModuleType, payload map[string]any) ValidationResult
}

// ModuleRuleFile is the top-level structure of the module rules YAML file.
type ModuleRuleFile struct {
	Modules []ModuleRule `yaml:"modules" json:"modules"`
}

// ModuleRule defines completeness and validity rules for one module type.
type ModuleRule struct {
	Type ModuleType `yaml:"type" json:"type"`

	// RequiredFields must be present and non-empty for the module to count
	// as complete.
	RequiredFields []string `yaml:"requiredFields" json:"requiredFields,omitempty"`

	// NumericFields must hold numeric values when present; a non-numeric
	// value makes the module invalid.
	NumericFields []string `yaml:"numericFields" json:"numericFields,omitempty"`
}

// RuleValidator is a ModuleValidator driven by a declarative rule set.
type RuleValidator struct {
	rules map[ModuleType]ModuleRule
}

// NewRuleValidator creates a validator with the given rules.
func NewRuleValidator(rules []ModuleRule) *RuleValidator {
	m := make(map[ModuleType]ModuleRule, len(rules))
	for _, r := range rules {
		m[r.Type] = r
	}
	return &RuleValidator{rules: m}
}

// LoadModuleRules loads module rules from a YAML file.
// Returns a validator with default rules if the file does not exist.
func LoadModuleRules(path string) (*RuleValidator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewRuleValidator(DefaultModuleRules()), nil
		}
		return nil, fmt.Errorf("read module rules: %w", err)
	}

	var rf ModuleRuleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse module rules: %w", err)
	}

	return NewRuleValidator(rf.Modules), nil
}

// DefaultModuleRules returns the built-in rule set used when no rules file is
// configured.
func DefaultModuleRules() []ModuleRule {
	return []ModuleRule{
		{Type: ModuleInvestmentThesis, RequiredFields: []string{"objective", "horizonYears"}, NumericFields: []string{"horizonYears"}},
		{Type: ModuleRiskManagement, RequiredFields: []string{"riskAppetite", "maxDrawdownPct"}, NumericFields: []string{"maxDrawdownPct"}},
		{Type: ModuleConstraints, RequiredFields: []string{"allocationLimits"}},
		{Type: ModuleGovernance, RequiredFields: []string{"reviewCadenceDays"}, NumericFields: []string{"reviewCadenceDays"}},
		{Type: ModuleReporting, RequiredFields: []string{"frequency"}},
	}
}

// Validate checks the payload against the rules for its module type.
// An empty payload is incomplete but valid: validity only fails on values
// that contradict the schema, mirroring the submit gate which checks
// validity, not completeness.
func (v *RuleValidator) Validate(moduleType ModuleType, payload map[string]any) ValidationResult {
	rule, ok := v.rules[moduleType]
	if !ok {
		// No rules configured for this type; nothing to block on.
		return ValidationResult{IsComplete: len(payload) > 0, IsValid: true}
	}

	result := ValidationResult{IsComplete: true, IsValid: true}

	for _, f := range rule.RequiredFields {
		if !fieldPresent(payload, f) {
			result.IsComplete = false
			result.Errors = append(result.Errors, fmt.Sprintf("missing field %q", f))
		}
	}

	for _, f := range rule.NumericFields {
		val, ok := payload[f]
		if !ok || val == nil {
			continue
		}
		if !isNumeric(val) {
			result.IsValid = false
			result.Errors = append(result.Errors, fmt.Sprintf("field %q must be numeric", f))
		}
	}

	return result
}

// CheckSubmit aggregates module validity into a submit-time decision.
// Any module with IsValid=false blocks submission; incomplete-but-valid
// modules do not.
func CheckSubmit(modules []ModuleRecord) SubmitCheck {
	check := SubmitCheck{CanPublish: true}
	for _, m := range modules {
		if !m.IsValid {
			check.CanPublish = false
			reason := "module failed validation"
			if len(m.Errors) > 0 {
				reason = m.Errors[0]
			}
			check.Blockers = append(check.Blockers, Blocker{ModuleType: m.ModuleType, Reason: reason})
		}
	}
	return check
}

func fieldPresent(payload map[string]any, field string) bool {
	val, ok := payload[field]
	if !ok || val == nil {
		return false
	}
	if s, isStr := val.(string); isStr && s == "" {
		return false
	}
	return true
}

func isNumeric(val any) bool {
	switch v := val.(type) {
	case int, int32, int64, float32, float64:
		return true
	case json.Number:
		_, err := v.Float64()
		return err == nil
	default:
		return false
	}
}
