// Package htmlsanitize strips unsafe markup from user-entered text before
// it is written to the remote store. Comments, replies, chat messages and
// material descriptions all pass through here.
package htmlsanitize

import "github.com/microcosm-cc/bluemonday"

var policy = bluemonday.UGCPolicy()

// Sanitize removes scripts, event handlers, and other unsafe markup while
// keeping common formatting tags.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return policy.Sanitize(s)
}
