// Package twiml renders the agent's abstract voice directives as Twilio
// TwiML. This is the only place carrier markup is produced; the
// orchestrator's decision logic never sees it.
package twiml

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/restockai/voiceline/pkg/agent/directive"
)

const (
	sayVoice    = "alice"
	sayLanguage = "en-US"
	speechModel = "experimental_utterances"
)

// Encode renders a directive sequence as a TwiML document. A Speak or
// Play immediately preceding a Listen is nested inside the Gather so the
// carrier accepts barge-in while the prompt plays.
func Encode(directives []directive.Directive) string {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString("<Response>")

	for i := 0; i < len(directives); i++ {
		if listen, ok := asListen(directives, i+1); ok {
			switch d := directives[i].(type) {
			case directive.Speak:
				writeGather(&b, listen, func() { writeSay(&b, d.Text) })
				i++
				continue
			case directive.Play:
				writeGather(&b, listen, func() { writePlay(&b, d.URL) })
				i++
				continue
			}
		}

		switch d := directives[i].(type) {
		case directive.Speak:
			writeSay(&b, d.Text)
		case directive.Play:
			writePlay(&b, d.URL)
		case directive.Listen:
			writeGather(&b, d, nil)
		case directive.Redirect:
			fmt.Fprintf(&b, "<Redirect>%s</Redirect>", escape(d.URL))
		case directive.Hangup:
			b.WriteString("<Hangup/>")
		}
	}

	b.WriteString("</Response>")
	return b.String()
}

func asListen(directives []directive.Directive, i int) (directive.Listen, bool) {
	if i >= len(directives) {
		return directive.Listen{}, false
	}
	l, ok := directives[i].(directive.Listen)
	return l, ok
}

func writeSay(b *strings.Builder, text string) {
	fmt.Fprintf(b, `<Say voice="%s" language="%s">%s</Say>`, sayVoice, sayLanguage, escape(text))
}

func writePlay(b *strings.Builder, url string) {
	fmt.Fprintf(b, "<Play>%s</Play>", escape(url))
}

func writeGather(b *strings.Builder, l directive.Listen, nested func()) {
	timeout := l.TimeoutSeconds
	if timeout <= 0 {
		timeout = 10
	}
	fmt.Fprintf(b, `<Gather input="speech" timeout="%d" speechTimeout="auto" speechModel="%s" enhanced="true" language="%s" action="%s" method="POST"`,
		timeout, speechModel, sayLanguage, escape(l.Action))
	if l.PartialAction != "" {
		fmt.Fprintf(b, ` partialResultCallback="%s"`, escape(l.PartialAction))
	}
	if nested == nil {
		b.WriteString("/>")
		return
	}
	b.WriteString(">")
	nested()
	b.WriteString("</Gather>")
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
