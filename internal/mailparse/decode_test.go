package mailparse

import (
	"errors"
	"strings"
	"testing"
)

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func TestDecodeHeaders(t *testing.T) {
	raw := crlf(`From: Ann Smith <ann@x.com>
To: bob@y.com, Carl <carl@z.com>
Subject: =?utf-8?q?Caf=C3=A9_plans?=
Date: Mon, 01 Jan 2024 10:00:00 +0200
Content-Type: text/plain; charset=utf-8

Hi Bob
`)
	msg, err := Decode("a.eml", raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if msg.SourceName != "a.eml" {
		t.Errorf("SourceName = %q", msg.SourceName)
	}
	if msg.Top.From != "Ann Smith <ann@x.com>" {
		t.Errorf("From = %q", msg.Top.From)
	}
	if msg.Top.To != "bob@y.com, Carl <carl@z.com>" {
		t.Errorf("To = %q", msg.Top.To)
	}
	if msg.Top.Subject != "Café plans" {
		t.Errorf("Subject = %q", msg.Top.Subject)
	}
	if msg.Top.Date != "2024-01-01T08:00:00Z" {
		t.Errorf("Date = %q", msg.Top.Date)
	}
	if strings.TrimSpace(msg.Body) != "Hi Bob" {
		t.Errorf("Body = %q", msg.Body)
	}
}

func TestDecodeBodies(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		exclude string
	}{
		{
			name: "quoted printable latin1",
			raw: `From: a@x.com
Content-Type: text/plain; charset=iso-8859-1
Content-Transfer-Encoding: quoted-printable

Caf=E9 at noon
`,
			want: "Café at noon",
		},
		{
			name: "alternative prefers plain text",
			raw: `From: a@x.com
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="b1"

--b1
Content-Type: text/plain; charset=utf-8

plain version
--b1
Content-Type: text/html; charset=utf-8

<p>html version</p>
--b1--
`,
			want:    "plain version",
			exclude: "html version",
		},
		{
			name: "html only",
			raw: `From: a@x.com
Content-Type: text/html; charset=utf-8

<html><head><style>p { color: red; }</style></head>
<body><p>First paragraph</p><script>var x = 1;</script><div>Second &amp; last</div></body></html>
`,
			want:    "Second & last",
			exclude: "color: red",
		},
		{
			name: "attachments ignored",
			raw: `From: a@x.com
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="m1"

--m1
Content-Type: text/plain; charset=utf-8

see attached
--m1
Content-Type: text/plain; name="notes.txt"
Content-Disposition: attachment; filename="notes.txt"

secret attachment text
--m1--
`,
			want:    "see attached",
			exclude: "secret attachment text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode("m.eml", crlf(tt.raw))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !strings.Contains(msg.Body, tt.want) {
				t.Errorf("Body = %q, want it to contain %q", msg.Body, tt.want)
			}
			if tt.exclude != "" && strings.Contains(msg.Body, tt.exclude) {
				t.Errorf("Body = %q, should not contain %q", msg.Body, tt.exclude)
			}
		})
	}
}

func TestDecodeKeepsUnparseableDate(t *testing.T) {
	msg, err := Decode("d.eml", crlf("From: a@x.com\nDate: sometime last week\n\nbody\n"))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if msg.Top.Date != "sometime last week" {
		t.Errorf("Date = %q, want raw header text", msg.Top.Date)
	}
}

func TestFormatAddress(t *testing.T) {
	tests := []struct {
		name, address, want string
	}{
		{"Ann", "ann@x.com", "Ann <ann@x.com>"},
		{"", "ann@x.com", "ann@x.com"},
		{"ann@x.com", "ann@x.com", "ann@x.com"},
		{"  Bob ", " bob@y.com ", "Bob <bob@y.com>"},
	}
	for _, tt := range tests {
		if got := FormatAddress(tt.name, tt.address); got != tt.want {
			t.Errorf("FormatAddress(%q, %q) = %q, want %q", tt.name, tt.address, got, tt.want)
		}
	}
}

func TestHTMLText(t *testing.T) {
	got := htmlText(strings.NewReader("<div>one<br>two</div><style>.x{}</style><p>three</p>"))
	for _, want := range []string{"one\ntwo", "three"} {
		if !strings.Contains(got, want) {
			t.Errorf("htmlText() = %q, want it to contain %q", got, want)
		}
	}
	if strings.Contains(got, ".x{}") {
		t.Errorf("htmlText() kept style content: %q", got)
	}
}

func TestSources(t *testing.T) {
	got, err := Sources("Thread.EML", []byte("From: a@x.com\r\n\r\nbody"))
	if err != nil || len(got) != 1 || got[0].Name != "Thread.EML" {
		t.Errorf("Sources(.eml) = %v, %v", got, err)
	}
	if _, err := Sources("notes.pdf", nil); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Sources(.pdf) error = %v, want ErrUnsupported", err)
	}
}

func TestSplitMbox(t *testing.T) {
	raw := []byte(`From ann@x.com Mon Jan  1 10:00:00 2024
From: ann@x.com
Subject: One

First message

From bob@y.com Mon Jan  1 11:00:00 2024
From: bob@y.com
Subject: Two

Second message
`)
	sources, err := Sources("box.mbox", raw)
	if err != nil {
		t.Fatalf("Sources() error = %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("got %d messages, want 2", len(sources))
	}
	for i, want := range []struct{ name, subject string }{{"box.mbox#1", "One"}, {"box.mbox#2", "Two"}} {
		if sources[i].Name != want.name {
			t.Errorf("source %d name = %q, want %q", i, sources[i].Name, want.name)
		}
		msg, err := Decode(sources[i].Name, sources[i].Raw)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if msg.Top.Subject != want.subject {
			t.Errorf("source %d subject = %q, want %q", i, msg.Top.Subject, want.subject)
		}
	}
}

func TestSafeFileName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"my file (1).eml", "my_file_(1).eml"},
		{"a//b??c.eml", "a_b_c.eml"},
		{"re: hello -- world.eml", "re_hello_--_world.eml"},
		{strings.Repeat("a", 200), strings.Repeat("a", 140)},
	}
	for _, tt := range tests {
		if got := SafeFileName(tt.in); got != tt.want {
			t.Errorf("SafeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
