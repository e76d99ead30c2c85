// Package mailparse turns uploaded RFC 822 files and mbox archives into the raw messages the
// thread extractor works on.
package mailparse

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.io/infrasutra/emlconvert/internal/thread"
)

// Decode parses one RFC 822 message. The body is the concatenation of its text/plain parts,
// or the visible text of its HTML parts when it has no plain text.
func Decode(name string, raw []byte) (thread.RawMessage, error) {
	msg := thread.RawMessage{SourceName: name}

	reader, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return msg, fmt.Errorf("read message %s: %w", name, err)
	}
	defer reader.Close()

	msg.Top = headerFields(reader.Header)

	var text, html []string
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				continue
			}
			return msg, fmt.Errorf("read part of %s: %w", name, err)
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		mediaType, _, _ := header.ContentType()
		switch {
		case mediaType == "" || strings.HasPrefix(mediaType, "text/plain"):
			body, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			text = append(text, string(body))
		case strings.HasPrefix(mediaType, "text/html"):
			html = append(html, htmlText(part.Body))
		}
	}

	switch {
	case len(text) > 0:
		msg.Body = strings.Join(text, "\n")
	case len(html) > 0:
		msg.Body = strings.Join(html, "\n\n")
	}
	return msg, nil
}

func headerFields(h mail.Header) thread.Fields {
	var fields thread.Fields
	fields.From = addressList(h, "From")
	fields.To = addressList(h, "To")
	if subject, err := h.Subject(); err == nil {
		fields.Subject = strings.TrimSpace(subject)
	} else {
		fields.Subject = strings.TrimSpace(h.Get("Subject"))
	}
	fields.Date = formatDate(h)
	return fields
}

func addressList(h mail.Header, key string) string {
	list, err := h.AddressList(key)
	if err != nil || len(list) == 0 {
		if text, err := h.Text(key); err == nil {
			return strings.TrimSpace(text)
		}
		return strings.TrimSpace(h.Get(key))
	}
	formatted := make([]string, 0, len(list))
	for _, addr := range list {
		formatted = append(formatted, FormatAddress(addr.Name, addr.Address))
	}
	return strings.Join(formatted, ", ")
}

// FormatAddress renders an address as "Name <addr>", or just the address when unnamed.
func FormatAddress(name, address string) string {
	name = strings.TrimSpace(name)
	address = strings.TrimSpace(address)
	if name == "" || strings.EqualFold(name, address) {
		return address
	}
	return name + " <" + address + ">"
}

func formatDate(h mail.Header) string {
	raw := strings.TrimSpace(h.Get("Date"))
	if raw == "" {
		return ""
	}
	date, err := h.Date()
	if err != nil || date.IsZero() {
		return raw
	}
	return date.UTC().Format(time.RFC3339)
}
