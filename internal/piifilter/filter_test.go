package piifilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"context-engine/internal/models"
)

func TestLevelForAgent(t *testing.T) {
	tests := []struct {
		agentType models.AgentType
		want      models.PIIFilterLevel
	}{
		{models.AgentBilling, models.PIIFilterNone},
		{models.AgentSecurity, models.PIIFilterNone},
		{models.AgentGeneral, models.PIIFilterPartial},
		{models.AgentTechnicalSupport, models.PIIFilterPartial},
		{models.AgentCustomerSuccess, models.PIIFilterPartial},
		{models.AgentEscalation, models.PIIFilterPartial},
		{models.AgentSales, models.PIIFilterFull},
		{models.AgentAnalytics, models.PIIFilterFull},
		{models.AgentType("made-up"), models.PIIFilterFull},
	}
	for _, tt := range tests {
		t.Run(string(tt.agentType), func(t *testing.T) {
			assert.Equal(t, tt.want, LevelForAgent(tt.agentType))
		})
	}
}

func TestFilter_EmailLevels(t *testing.T) {
	data := map[string]interface{}{"email": "jane@example.com"}

	t.Run("none passes through", func(t *testing.T) {
		out := Filter(data, models.PIIFilterNone)
		assert.Equal(t, "jane@example.com", out["email"])
	})

	t.Run("partial keeps first char and domain", func(t *testing.T) {
		out := Filter(data, models.PIIFilterPartial)
		assert.Equal(t, "j***@example.com", out["email"])
	})

	t.Run("full redacts entirely", func(t *testing.T) {
		out := Filter(data, models.PIIFilterFull)
		assert.Equal(t, redactedToken, out["email"])
	})
}

func TestFilter_PhoneKeepsLastFourAndSeparators(t *testing.T) {
	out := Filter(map[string]interface{}{
		"phone_number": "415-555-0199",
	}, models.PIIFilterPartial)
	assert.Equal(t, "***-***-0199", out["phone_number"])
}

func TestFilter_SSN(t *testing.T) {
	out := Filter(map[string]interface{}{
		"ssn": "123-45-6789",
	}, models.PIIFilterPartial)
	assert.Equal(t, "***-**-6789", out["ssn"])
}

func TestFilter_CreditCard(t *testing.T) {
	out := Filter(map[string]interface{}{
		"card_number": "4111 1111 1111 1111",
	}, models.PIIFilterPartial)
	assert.Equal(t, "**** **** **** 1111", out["card_number"])
}

func TestFilter_IPAddress(t *testing.T) {
	out := Filter(map[string]interface{}{
		"last_login_ip": "203.0.113.42",
	}, models.PIIFilterPartial)
	assert.Equal(t, "203.0.113.xxx", out["last_login_ip"])
}

func TestFilter_ValueShapeDetection(t *testing.T) {
	// The field name says nothing, but the value looks like an email.
	out := Filter(map[string]interface{}{
		"primary_contact": "jane@example.com",
	}, models.PIIFilterPartial)
	assert.Equal(t, "j***@example.com", out["primary_contact"])
}

func TestFilter_GenericFieldName(t *testing.T) {
	out := Filter(map[string]interface{}{
		"full_name": "Jane Doe",
	}, models.PIIFilterPartial)
	assert.Equal(t, "J******e", out["full_name"])
}

func TestFilter_ShortValuesMaskedToLength(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"J", "*"},
		{"Jo", "**"},
		{"Amy", "A*y"},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			out := Filter(map[string]interface{}{"full_name": tt.value}, models.PIIFilterPartial)
			assert.Equal(t, tt.want, out["full_name"], "mask preserves length for short values")
		})
	}
}

func TestFilter_NonPIIUntouched(t *testing.T) {
	data := map[string]interface{}{
		"company_name": "Acme Corp",
		"health_score": 82.0,
		"plan":         "enterprise",
	}
	out := Filter(data, models.PIIFilterFull)
	assert.Equal(t, data, out)
}

func TestFilter_NestedStructures(t *testing.T) {
	data := map[string]interface{}{
		"account": map[string]interface{}{
			"email": "jane@example.com",
			"tier":  "gold",
		},
		"contacts": []interface{}{
			map[string]interface{}{"email": "ops@example.com"},
		},
	}

	out := Filter(data, models.PIIFilterPartial)

	account, ok := out["account"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "j***@example.com", account["email"])
	assert.Equal(t, "gold", account["tier"])

	contacts, ok := out["contacts"].([]interface{})
	require.True(t, ok)
	first, ok := contacts[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "o***@example.com", first["email"])
}

func TestFilter_FullRedactsNonStringPIIFields(t *testing.T) {
	out := Filter(map[string]interface{}{
		"address": map[string]interface{}{
			"street": "1 Main St",
			"city":   "Springfield",
		},
	}, models.PIIFilterFull)
	assert.Equal(t, redactedToken, out["address"])
}

func TestFilter_DoesNotMutateInput(t *testing.T) {
	data := map[string]interface{}{
		"email": "jane@example.com",
		"account": map[string]interface{}{
			"phone": "415-555-0199",
		},
	}

	_ = Filter(data, models.PIIFilterFull)

	assert.Equal(t, "jane@example.com", data["email"])
	account := data["account"].(map[string]interface{})
	assert.Equal(t, "415-555-0199", account["phone"])
}

func TestFilter_NoneLevelReturnsIndependentCopy(t *testing.T) {
	data := map[string]interface{}{
		"account": map[string]interface{}{"email": "jane@example.com"},
	}

	out := Filter(data, models.PIIFilterNone)
	out["account"].(map[string]interface{})["email"] = "changed"

	assert.Equal(t, "jane@example.com", data["account"].(map[string]interface{})["email"])
}

func TestFilter_Nil(t *testing.T) {
	assert.Nil(t, Filter(nil, models.PIIFilterPartial))
}

func TestFilter_CamelCaseFieldNames(t *testing.T) {
	out := Filter(map[string]interface{}{
		"emailAddress": "jane@example.com",
	}, models.PIIFilterPartial)
	assert.Equal(t, "j***@example.com", out["emailAddress"])
}
