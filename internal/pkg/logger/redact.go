package logger

import "strings"

// RedactEmail masks an address for log output, keeping at most the first two
// characters of the local part and the full domain. Anything that doesn't
// look like an address is masked entirely.
func RedactEmail(email string) string {
	at := strings.Split(email, "@")
	if len(at) != 2 {
		return "***@***"
	}
	local := at[0]
	if len(local) <= 2 {
		return "***@" + at[1]
	}
	return local[:2] + "***@" + at[1]
}
