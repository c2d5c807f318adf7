package redaction

import "fmt"

// PiiState is how the service treats an entity type.
type PiiState string

const (
	Redaction PiiState = "Redaction"
	Synthesis PiiState = "Synthesis"
	Off       PiiState = "Off"
)

// ParsePiiState validates a state name.
func ParsePiiState(s string) (PiiState, error) {
	switch PiiState(s) {
	case Redaction, Synthesis, Off:
		return PiiState(s), nil
	}
	return "", fmt.Errorf("invalid pii state %q: allowed values are Off, Synthesis, and Redaction", s)
}

// PiiTypes lists the entity labels the service detects.
var PiiTypes = []string{
	"NUMERIC_VALUE",
	"LANGUAGE",
	"MONEY",
	"PRODUCT",
	"EVENT",
	"WORK_OF_ART",
	"LAW",
	"US_PASSPORT",
	"MEDICAL_LICENSE",
	"DATE_TIME",
	"US_BANK_NUMBER",
	"NRP",
	"US_SSN",
	"IP_ADDRESS",
	"ORGANIZATION",
	"PHONE_NUMBER",
	"US_ITIN",
	"LOCATION",
	"LOCATION_ADDRESS",
	"LOCATION_CITY",
	"LOCATION_STATE",
	"LOCATION_ZIP",
	"LOCATION_COUNTRY",
	"LOCATION_COMPLETE_ADDRESS",
	"CREDIT_CARD",
	"CC_EXP",
	"CVV",
	"NAME_GIVEN",
	"NAME_FAMILY",
	"OCCUPATION",
	"GENDER_IDENTIFIER",
	"EMAIL_ADDRESS",
	"PERSON_AGE",
	"DOB",
	"URL",
	"US_DRIVER_LICENSE",
	"IBAN_CODE",
	"PERSON",
	"PASSWORD",
	"HEALTHCARE_ID",
	"USERNAME",
	"MICR_CODE",
	"NUMERIC_PII",
	"PROJECT_NAME",
}

var piiTypeSet = func() map[string]bool {
	m := make(map[string]bool, len(PiiTypes))
	for _, t := range PiiTypes {
		m[t] = true
	}
	return m
}()

// IsKnownPiiType reports whether label is a built-in entity type.
func IsKnownPiiType(label string) bool {
	return piiTypeSet[label]
}
