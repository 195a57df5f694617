package piifilter

import "regexp"

// piiKind classifies a value so the right masker runs on it.
type piiKind int

const (
	kindNone piiKind = iota
	kindEmail
	kindPhone
	kindSSN
	kindCreditCard
	kindIPAddress
	kindGeneric
)

// fieldNameKinds maps normalized field names to the PII category they carry.
// Matching is on the lowercased field name with separators stripped, so
// "Email_Address" and "emailAddress" both land on kindEmail.
var fieldNameKinds = map[string]piiKind{
	"email":          kindEmail,
	"emailaddress":   kindEmail,
	"contactemail":   kindEmail,
	"billingemail":   kindEmail,
	"phone":          kindPhone,
	"phonenumber":    kindPhone,
	"mobile":         kindPhone,
	"mobilenumber":   kindPhone,
	"fax":            kindPhone,
	"ssn":            kindSSN,
	"socialsecurity": kindSSN,
	"taxid":          kindSSN,
	"creditcard":     kindCreditCard,
	"cardnumber":     kindCreditCard,
	"ccnumber":       kindCreditCard,
	"pan":            kindCreditCard,
	"ipaddress":      kindIPAddress,
	"ip":             kindIPAddress,
	"lastloginip":    kindIPAddress,
	"fullname":       kindGeneric,
	"firstname":      kindGeneric,
	"lastname":       kindGeneric,
	"dateofbirth":    kindGeneric,
	"dob":            kindGeneric,
	"address":        kindGeneric,
	"streetaddress":  kindGeneric,
	"homeaddress":    kindGeneric,
	"passport":       kindGeneric,
	"passportnumber": kindGeneric,
	"driverslicense": kindGeneric,
}

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 .()\-]{6,}[0-9]$`)
	ssnPattern   = regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`)
	ccPattern    = regexp.MustCompile(`^(?:\d[ \-]?){13,19}$`)
	ipPattern    = regexp.MustCompile(`^(?:\d{1,3}\.){3}\d{1,3}$`)
)

// classifyValue falls back to shape-based detection when the field name gives
// nothing away. Order matters: SSN and card formats are digit strings a loose
// phone pattern would also accept.
func classifyValue(value string) piiKind {
	switch {
	case emailPattern.MatchString(value):
		return kindEmail
	case ssnPattern.MatchString(value):
		return kindSSN
	case ccPattern.MatchString(value):
		return kindCreditCard
	case ipPattern.MatchString(value):
		return kindIPAddress
	case phonePattern.MatchString(value):
		return kindPhone
	default:
		return kindNone
	}
}
