// Package twiml renders the response documents the telephony provider expects from its callbacks.
package twiml

import (
	"encoding/xml"
	"strconv"
)

// Empty acknowledges a callback without asking the provider to do anything.
const Empty = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

const ContentType = "text/xml"

type response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

type say struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type dial struct {
	XMLName xml.Name `xml:"Dial"`
	Timeout string   `xml:"timeout,attr"`
	Record  string   `xml:"record,attr,omitempty"`
	Number  string   `xml:"Number"`
}

// Forward describes a forwarded call.
type Forward struct {
	To             string
	RingTimeout    int // seconds
	Voice          string
	Greeting       string
	FailureMessage string
	Record         string
}

// ForwardCall announces the forward, dials To with a bounded ring timeout and announces the failure
// message if the dial does not complete.
func ForwardCall(f Forward) ([]byte, error) {
	doc := response{}
	if f.Greeting != "" {
		doc.Verbs = append(doc.Verbs, say{Voice: f.Voice, Text: f.Greeting})
	}
	doc.Verbs = append(doc.Verbs, dial{
		Timeout: strconv.Itoa(f.RingTimeout),
		Record:  f.Record,
		Number:  f.To,
	})
	if f.FailureMessage != "" {
		doc.Verbs = append(doc.Verbs, say{Voice: f.Voice, Text: f.FailureMessage})
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(body)+40)
	out = append(out, `<?xml version="1.0" encoding="UTF-8"?>`+"\n"...)
	return append(out, body...), nil
}
