package logger

import "strings"

// RedactPhone masks a phone number for safe logging, keeping the last four
// characters: "212679752339" -> "********2339". Short values are fully masked.
func RedactPhone(phone string) string {
	if len(phone) <= 4 {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

// RedactSecret masks a credential value, keeping the last four characters.
func RedactSecret(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 8 {
		return "****"
	}
	return "****" + value[len(value)-4:]
}
