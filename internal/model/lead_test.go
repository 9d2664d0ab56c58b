package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLead_MissingFields(t *testing.T) {
	required := []string{LeadFieldName, LeadFieldEmail, LeadFieldCompanyName, LeadFieldMobileNumber, LeadFieldService}

	lead := Lead{"name": "A"}
	assert.Equal(t, []string{"email", "companyName", "mobileNumber", "service"}, lead.MissingFields(required))

	full := Lead{
		"name":         "A",
		"email":        "a@example.com",
		"companyName":  "Acme",
		"mobileNumber": float64(201000000000),
		"service":      "SEO",
	}
	assert.Empty(t, full.MissingFields(required))

	blanks := Lead{"name": "", "email": nil, "companyName": false, "mobileNumber": float64(0), "service": "x"}
	assert.Equal(t, []string{"name", "email", "companyName", "mobileNumber"}, blanks.MissingFields(required))
}

func TestLead_Field(t *testing.T) {
	lead := Lead{
		"name":         "  Jane  ",
		"mobileNumber": float64(201000494040),
		"ratio":        1.5,
		"extra":        []any{"a"},
	}
	assert.Equal(t, "Jane", lead.Name())
	assert.Equal(t, "201000494040", lead.MobileNumber())
	assert.Equal(t, "1.5", lead.Field("ratio"))
	assert.Equal(t, "", lead.Email())
	assert.Equal(t, "[a]", lead.Field("extra"))
}

func TestLead_Stamped(t *testing.T) {
	lead := Lead{"name": "A"}
	now := time.Date(2024, 3, 5, 10, 4, 5, 123_000_000, time.FixedZone("EET", 2*3600))

	stamped := lead.Stamped(now)
	assert.Equal(t, "2024-03-05T08:04:05.123Z", stamped.Timestamp())
	assert.Equal(t, "A", stamped.Name())
	_, touched := lead[LeadFieldTimestamp]
	assert.False(t, touched, "original lead must not be mutated")
}

func TestLead_JSONNumber(t *testing.T) {
	lead := Lead{"mobileNumber": json.Number("201000494040"), "service": json.Number("0")}
	assert.Equal(t, "201000494040", lead.MobileNumber())
	assert.Equal(t, []string{"service"}, lead.MissingFields([]string{"mobileNumber", "service"}))
}
