package crawler

import (
	"regexp"
	"strings"
)

var emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// Placeholder domains show up in templates and tracking snippets, never as a
// real contact address.
var placeholderDomains = map[string]bool{
	"example.com":    true,
	"example.org":    true,
	"email.com":      true,
	"domain.com":     true,
	"yourdomain.com": true,
	"mysite.com":     true,
	"sentry.io":      true,
	"wixpress.com":   true,
}

// Asset references ("logo@2x.png") match the email pattern but end in a
// file extension.
var assetExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".js", ".css", ".ico"}

// firstValidEmail returns the first email-shaped token in the page that
// survives the placeholder denylist, or "".
func firstValidEmail(body []byte) string {
	for _, match := range emailRe.FindAllString(string(body), -1) {
		if email := strings.ToLower(match); validEmail(email) {
			return email
		}
	}
	return ""
}

func validEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	if placeholderDomains[domain] {
		return false
	}
	for _, ext := range assetExtensions {
		if strings.HasSuffix(email, ext) {
			return false
		}
	}
	return true
}
