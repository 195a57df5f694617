package piifilter

import (
	"strings"

	"context-engine/internal/models"
)

// redactedToken replaces values entirely at the full filtering level.
const redactedToken = "[REDACTED]"

// levelForAgent maps each agent type to how much PII it may see. Billing and
// security agents work payment and identity cases and get raw data; sales and
// analytics never need individual identifiers.
var levelForAgent = map[models.AgentType]models.PIIFilterLevel{
	models.AgentBilling:          models.PIIFilterNone,
	models.AgentSecurity:         models.PIIFilterNone,
	models.AgentGeneral:          models.PIIFilterPartial,
	models.AgentTechnicalSupport: models.PIIFilterPartial,
	models.AgentCustomerSuccess:  models.PIIFilterPartial,
	models.AgentEscalation:       models.PIIFilterPartial,
	models.AgentSales:            models.PIIFilterFull,
	models.AgentAnalytics:        models.PIIFilterFull,
}

// LevelForAgent returns the filtering level for an agent type. Unknown agent
// types get full filtering; leaking is worse than over-masking.
func LevelForAgent(agentType models.AgentType) models.PIIFilterLevel {
	if level, ok := levelForAgent[agentType]; ok {
		return level
	}
	return models.PIIFilterFull
}

// Filter returns a copy of data with PII masked according to level. The
// input is never mutated. Detection combines field-name matching with
// shape-based matching on string values, and recurses through nested maps
// and lists.
func Filter(data map[string]interface{}, level models.PIIFilterLevel) map[string]interface{} {
	if data == nil {
		return nil
	}
	if level == models.PIIFilterNone {
		return deepCopyMap(data)
	}
	return filterMap(data, level)
}

// FilterForAgent is Filter with the level derived from the agent type.
func FilterForAgent(data map[string]interface{}, agentType models.AgentType) map[string]interface{} {
	return Filter(data, LevelForAgent(agentType))
}

func filterMap(data map[string]interface{}, level models.PIIFilterLevel) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for key, value := range data {
		out[key] = filterValue(key, value, level)
	}
	return out
}

func filterValue(key string, value interface{}, level models.PIIFilterLevel) interface{} {
	kind := kindForField(key)

	switch v := value.(type) {
	case string:
		if kind == kindNone {
			kind = classifyValue(v)
		}
		if kind == kindNone {
			return v
		}
		return maskString(v, kind, level)
	case map[string]interface{}:
		if kind != kindNone && level == models.PIIFilterFull {
			return redactedToken
		}
		return filterMap(v, level)
	case []interface{}:
		if kind != kindNone && level == models.PIIFilterFull {
			return redactedToken
		}
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = filterValue(key, item, level)
		}
		return out
	default:
		if kind != kindNone && level == models.PIIFilterFull {
			return redactedToken
		}
		return value
	}
}

func kindForField(field string) piiKind {
	normalized := strings.ToLower(field)
	normalized = strings.NewReplacer("_", "", "-", "", " ", "").Replace(normalized)
	return fieldNameKinds[normalized]
}

func maskString(value string, kind piiKind, level models.PIIFilterLevel) string {
	if level == models.PIIFilterFull {
		return redactedToken
	}

	switch kind {
	case kindEmail:
		return maskEmail(value)
	case kindPhone, kindSSN, kindCreditCard:
		return maskDigitsKeepLast(value, 4)
	case kindIPAddress:
		return maskIP(value)
	default:
		return maskGeneric(value)
	}
}

// maskEmail keeps the first character of the local part and the full domain:
// "jane@example.com" becomes "j***@example.com".
func maskEmail(value string) string {
	at := strings.LastIndex(value, "@")
	if at <= 0 {
		return maskGeneric(value)
	}
	return value[:1] + "***" + value[at:]
}

// maskDigitsKeepLast stars out every digit except the trailing keep,
// preserving separators: "415-555-0100" becomes "***-***-0100".
func maskDigitsKeepLast(value string, keep int) string {
	digits := 0
	for _, r := range value {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	toMask := digits - keep

	out := make([]rune, 0, len(value))
	for _, r := range value {
		if r >= '0' && r <= '9' && toMask > 0 {
			out = append(out, '*')
			toMask--
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

// maskIP zeroes the host portion: "203.0.113.42" becomes "203.0.113.xxx".
func maskIP(value string) string {
	idx := strings.LastIndex(value, ".")
	if idx < 0 {
		return maskGeneric(value)
	}
	return value[:idx] + ".xxx"
}

// maskGeneric keeps the first and last characters of longer values. Values
// of one or two characters are starred out entirely, keeping their length.
func maskGeneric(value string) string {
	runes := []rune(value)
	if len(runes) <= 2 {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[0]) + strings.Repeat("*", len(runes)-2) + string(runes[len(runes)-1])
}

func deepCopyMap(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for key, value := range data {
		out[key] = deepCopyValue(value)
	}
	return out
}

func deepCopyValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return deepCopyMap(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return value
	}
}
