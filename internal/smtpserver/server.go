// Package smtpserver accepts mail over SMTP and converts each message for its recipients, so
// a mail client can forward a thread instead of exporting a file.
package smtpserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.io/infrasutra/emlconvert/internal/auth"
	"github.io/infrasutra/emlconvert/internal/convert"
	"github.io/infrasutra/emlconvert/internal/mailparse"
)

const (
	defaultDomain   = "emlconvert"
	convertTimeout  = time.Minute
	fallbackSubject = "message"
)

type AuthConfig struct {
	Enabled  bool
	Username string
	Password string
}

type Server struct {
	smtp   *smtp.Server
	logger *slog.Logger
}

func New(converter *convert.Service, logger *slog.Logger, addr string, maxBytes int64, authCfg AuthConfig) *Server {
	backend := &backend{
		converter: converter,
		logger:    logger,
		auth:      authCfg,
	}
	server := smtp.NewServer(backend)
	server.Addr = addr
	server.Domain = defaultDomain
	server.AllowInsecureAuth = true
	server.ReadTimeout = 15 * time.Second
	server.WriteTimeout = 15 * time.Second
	server.MaxRecipients = 100
	server.MaxMessageBytes = maxBytes

	return &Server{smtp: server, logger: logger}
}

func (s *Server) ListenAndServe() error {
	s.logger.Info("smtp intake listening", "addr", s.smtp.Addr)
	return s.smtp.ListenAndServe()
}

func (s *Server) Close() error {
	return s.smtp.Close()
}

type backend struct {
	converter *convert.Service
	logger    *slog.Logger
	auth      AuthConfig
}

func (b *backend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &session{backend: b}, nil
}

type session struct {
	backend       *backend
	from          string
	to            []string
	authenticated bool
}

func (s *session) AuthMechanisms() []string {
	if s.backend.auth.Enabled {
		return []string{sasl.Plain}
	}
	return nil
}

func (s *session) Auth(mech string) (sasl.Server, error) {
	if !s.backend.auth.Enabled {
		return nil, errors.New("authentication not enabled")
	}
	if mech != sasl.Plain {
		return nil, errors.New("unsupported authentication mechanism")
	}
	return sasl.NewPlainServer(func(identity, username, password string) error {
		if username == s.backend.auth.Username && password == s.backend.auth.Password {
			s.authenticated = true
			return nil
		}
		return errors.New("invalid credentials")
	}), nil
}

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	if s.backend.auth.Enabled && !s.authenticated {
		return smtp.ErrAuthRequired
	}
	s.from = strings.TrimSpace(strings.ToLower(from))
	return nil
}

// Rcpt accepts each distinct valid address once. Every recipient owns a conversion.
func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	if s.backend.auth.Enabled && !s.authenticated {
		return smtp.ErrAuthRequired
	}
	owner, err := auth.NormalizeEmail(to)
	if err != nil {
		return &smtp.SMTPError{Code: 553, EnhancedCode: smtp.EnhancedCode{5, 1, 3}, Message: "invalid recipient address"}
	}
	for _, existing := range s.to {
		if existing == owner {
			return nil
		}
	}
	s.to = append(s.to, owner)
	return nil
}

func (s *session) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	name := messageName(raw)

	ctx, cancel := context.WithTimeout(context.Background(), convertTimeout)
	defer cancel()

	converted := 0
	for _, owner := range s.to {
		_, err := s.backend.converter.Convert(ctx, convert.Request{
			Owner:   owner,
			Uploads: []convert.Upload{{Name: name, Data: raw}},
		})
		if err != nil {
			s.backend.logger.Error("convert smtp message", "from", s.from, "owner", owner, "error", err)
			continue
		}
		converted++
	}
	if converted == 0 && len(s.to) > 0 {
		return &smtp.SMTPError{Code: 554, EnhancedCode: smtp.EnhancedCode{5, 6, 0}, Message: "message could not be converted"}
	}
	return nil
}

func (s *session) Reset() {
	s.from = ""
	s.to = nil
}

func (s *session) Logout() error {
	return nil
}

// messageName derives an upload name from the subject of a received message.
func messageName(raw []byte) string {
	subject := fallbackSubject
	if msg, err := mailparse.Decode("", raw); err == nil && strings.TrimSpace(msg.Top.Subject) != "" {
		subject = msg.Top.Subject
	}
	name := strings.Trim(mailparse.SafeFileName(subject), "_")
	if name == "" {
		name = fallbackSubject
	}
	return name + ".eml"
}
