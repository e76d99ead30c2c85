package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/smtp"
	"os"
	"strings"
	"time"
)

type historyResponse struct {
	Conversions []struct {
		ID      string   `json:"id"`
		Name    string   `json:"name"`
		Records int      `json:"records"`
		Formats []string `json:"formats"`
	} `json:"conversions"`
	Page struct {
		Total int `json:"total"`
	} `json:"page"`
}

func main() {
	baseURL := getenvDefault("EMLCONVERT_URL", "http://localhost:3030")
	smtpAddr := getenvDefault("EMLCONVERT_SMTP", "localhost:2030")
	smtpUser := os.Getenv("SMTP_USERNAME")
	smtpPass := os.Getenv("SMTP_PASSWORD")

	users := []string{"analyst1@emlconvert.dev", "analyst2@emlconvert.dev"}
	clients := map[string]*http.Client{}
	for _, user := range users {
		fmt.Println("Logging in as", user)
		clients[user] = newClient()
		loginUser(clients[user], baseURL, user)
	}

	fmt.Println("Forwarding a thread to the intake...")
	sendSMTP(smtpAddr, smtpUser, smtpPass, "forwarder@emlconvert.dev", users, buildThreadMessage(strings.Join(users, ", ")))

	time.Sleep(500 * time.Millisecond)

	for _, user := range users {
		history := listConversions(clients[user], baseURL)
		fmt.Printf("- %s conversions=%d\n", user, history.Page.Total)
		if len(history.Conversions) == 0 {
			continue
		}
		latest := history.Conversions[0]
		fmt.Printf("  latest %q records=%d formats=%v\n", latest.Name, latest.Records, latest.Formats)
		for _, format := range latest.Formats {
			size := download(clients[user], fmt.Sprintf("%s/api/conversions/%s/%s", baseURL, latest.ID, format))
			fmt.Printf("  downloaded %s (%d bytes)\n", format, size)
		}
	}
}

func newClient() *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{
		Timeout: 10 * time.Second,
		Jar:     jar,
	}
}

func loginUser(client *http.Client, baseURL, email string) {
	payload, _ := json.Marshal(map[string]string{"email": email})
	resp := mustDo(client, "POST", baseURL+"/api/login", bytes.NewReader(payload))
	_ = resp.Body.Close()
}

func listConversions(client *http.Client, baseURL string) historyResponse {
	resp := mustDo(client, "GET", baseURL+"/api/conversions?page=1&limit=5", nil)
	defer resp.Body.Close()
	var out historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		panic(err)
	}
	return out
}

func download(client *http.Client, url string) int64 {
	resp := mustDo(client, "GET", url, nil)
	defer resp.Body.Close()
	n, _ := io.Copy(io.Discard, resp.Body)
	return n
}

func sendSMTP(addr, username, password, from string, to []string, msg []byte) {
	var auth smtp.Auth
	if username != "" || password != "" {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}
		auth = smtp.PlainAuth("", username, password, host)
	}
	if err := smtp.SendMail(addr, auth, from, to, msg); err != nil {
		fmt.Fprintln(os.Stderr, "smtp error:", err)
	}
}

// buildThreadMessage returns a forwarded reply chain with an Outlook style quoted message and a
// Gmail style attribution line.
func buildThreadMessage(recipients string) []byte {
	boundary := fmt.Sprintf("emlconvert-%d", time.Now().UnixNano())
	text := strings.Join([]string{
		"Forwarding the vendor thread for the archive.",
		"",
		"-----Original Message-----",
		"From: Vendor Support <support@vendor.example>",
		"To: forwarder@emlconvert.dev",
		"Subject: RE: Invoice 2231",
		"Sent: Tuesday, March 5, 2024 9:12 AM",
		"",
		"The corrected invoice is attached, sorry for the delay.",
		"",
		"On Mon, Mar 4, 2024 at 4:40 PM Forwarder <forwarder@emlconvert.dev> wrote:",
		"> Invoice 2231 lists the wrong quantity, can you reissue it?",
		"",
	}, "\n")
	html := "<html><body><p>Forwarding the vendor thread for the archive.</p></body></html>"
	lines := []string{
		"From: Forwarder <forwarder@emlconvert.dev>",
		"To: " + recipients,
		"Subject: Fwd: Invoice 2231",
		"Date: " + time.Now().Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		"Content-Type: multipart/alternative; boundary=" + boundary,
		"",
		"--" + boundary,
		"Content-Type: text/plain; charset=utf-8",
		"",
		text,
		"--" + boundary,
		"Content-Type: text/html; charset=utf-8",
		"",
		html,
		"--" + boundary + "--",
		"",
	}
	return []byte(strings.ReplaceAll(strings.Join(lines, "\n"), "\n", "\r\n"))
}

func mustDo(client *http.Client, method, url string, body io.Reader) *http.Response {
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		panic(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		panic(err)
	}
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		panic(fmt.Sprintf("request failed: %s %s: %s", method, url, string(b)))
	}
	return resp
}

func getenvDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
