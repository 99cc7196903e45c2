package sanitizer

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var (
	supportedRegions = []string{
		"US",
		"GB",
		"IL",
	}

	reValidPhone = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)
)

// SanitizePhone normalizes a phone number to E.164. Numbers without a
// country code are tried against the supported regions in order. Invalid
// numbers come back empty so validation can reject them.
func SanitizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return phone
	}

	if reValidPhone.MatchString(phone) {
		return phone
	}

	for _, region := range supportedRegions {
		parsedNumber, err := phonenumbers.Parse(phone, region)
		if err != nil {
			continue
		}
		if phonenumbers.IsValidNumber(parsedNumber) {
			return phonenumbers.Format(parsedNumber, phonenumbers.E164)
		}
	}
	return ""
}
