// Package whatsapp adapts the Meta Cloud API: inbound payload parsing,
// webhook signature verification, and outbound text delivery.
package whatsapp

import "encoding/json"

// Incoming is one inbound user message, channel details stripped.
type Incoming struct {
	From      string
	Type      string
	Text      string
	MessageID string
}

type cloudEnvelope struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From string `json:"from"`
					ID   string `json:"id"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type flatMessage struct {
	From      string `json:"from"`
	Text      string `json:"text"`
	MessageID string `json:"messageId"`
}

// ParseIncoming extracts the first text message from a webhook body. It
// accepts both the Cloud API envelope and the flat {from, text} shape used
// for local simulation. Nil means nothing actionable (status updates,
// non-text messages), which is not an error.
func ParseIncoming(body []byte) *Incoming {
	var flat flatMessage
	if err := json.Unmarshal(body, &flat); err == nil && flat.From != "" && flat.Text != "" {
		return &Incoming{From: flat.From, Type: "text", Text: flat.Text, MessageID: flat.MessageID}
	}

	var env cloudEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil
	}
	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" || msg.Text.Body == "" {
					continue
				}
				return &Incoming{
					From:      msg.From,
					Type:      msg.Type,
					Text:      msg.Text.Body,
					MessageID: msg.ID,
				}
			}
		}
	}
	return nil
}
