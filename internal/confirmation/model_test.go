package confirmation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseReply(t *testing.T) {
	cases := []struct {
		body   string
		intent Intent
		ok     bool
	}{
		{"YES", IntentConfirm, true},
		{"yes", IntentConfirm, true},
		{"  Yes  ", IntentConfirm, true},
		{"CONFIRM", IntentConfirm, true},
		{"confirm", IntentConfirm, true},
		{"NO", IntentDecline, true},
		{"no", IntentDecline, true},
		{"CANCEL", IntentDecline, true},
		{"\tcancel\n", IntentDecline, true},
		{"maybe", "", false},
		{"", "", false},
		{"YES PLEASE", "", false},
		{"Y", "", false},
	}
	for _, tc := range cases {
		intent, ok := ParseReply(tc.body)
		assert.Equal(t, tc.ok, ok, "body %q", tc.body)
		assert.Equal(t, tc.intent, intent, "body %q", tc.body)
	}
}
