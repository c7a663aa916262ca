package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailer_Enabled(t *testing.T) {
	assert.False(t, (&Mailer{}).Enabled())
	assert.False(t, (&Mailer{Host: "smtp.example.com"}).Enabled(), "no recipients")
	assert.False(t, (&Mailer{Recipients: []string{"ops@example.com"}}).Enabled(), "no host")
	assert.True(t, (&Mailer{Host: "smtp.example.com", Recipients: []string{"ops@example.com"}}).Enabled())

	var nilMailer *Mailer
	assert.False(t, nilMailer.Enabled())
}

func TestMailer_SendUsesConfiguredEndpoint(t *testing.T) {
	m := NewMailer("smtp.example.com", 2525, "harvester@example.com", []string{"a@example.com", "b@example.com"})

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	m.send = func(addr, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	require.NoError(t, m.Send("run completed", "all good"))
	assert.Equal(t, "smtp.example.com:2525", gotAddr)
	assert.Equal(t, "harvester@example.com", gotFrom)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: run completed\r\n")
	assert.Contains(t, string(gotMsg), "\r\n\r\nall good")
}

func TestMailer_SendDisabledIsNoop(t *testing.T) {
	m := &Mailer{}
	called := false
	m.send = func(string, string, []string, []byte) error {
		called = true
		return nil
	}
	require.NoError(t, m.Send("s", "b"))
	assert.False(t, called)
}

func TestCompose(t *testing.T) {
	msg := string(Compose("from@example.com", []string{"to@example.com"}, "hello", "body text"))
	assert.Contains(t, msg, "From: from@example.com\r\n")
	assert.Contains(t, msg, "To: to@example.com\r\n")
	assert.Contains(t, msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	assert.True(t, len(msg) > 0 && msg[len(msg)-len("body text"):] == "body text")
}
