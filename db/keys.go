// ABOUTME: Persisted key layout for every record kind
// ABOUTME: Keys are plain prefixed strings so any backend can scan them
package db

import (
	"strconv"
	"strings"
)

const (
	LeadPrefix         = "crm-lead:"
	InvoicePrefix      = "invoice:"
	InvoiceCounterKey  = "invoice:counter"
	UserInvoicesPrefix = "user-invoices:"
	UserPrefix         = "user:"
	PermissionsPrefix  = "user-permissions:"
	ProfilePrefix      = "profile:"
	FilingPrefix       = "tax-filing:"
)

func LeadKey(id string) string { return LeadPrefix + id }
func InvoiceKey(number string) string { return InvoicePrefix + number }
func UserInvoicesKey(userID string) string { return UserInvoicesPrefix + userID }
func UserKey(userID string) string { return UserPrefix + userID }
func PermissionsKey(userID string) string { return PermissionsPrefix + userID }
func ProfileKey(userID string) string { return ProfilePrefix + userID }

func FilingKey(userID string, year int) string {
	return FilingPrefix + userID + ":" + strconv.Itoa(year)
}

// trimKey strips prefix from key, reporting whether it was present.
func trimKey(key, prefix string) (string, bool) {
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	return key[len(prefix):], true
}
