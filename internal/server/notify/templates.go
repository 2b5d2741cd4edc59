package notify

import (
	"bytes"
	"fmt"
	"net/url"
	"text/template"

	"github.com/google/uuid"
)

var (
	verificationTmpl = template.Must(template.New("verification").Parse(`Hi {{.Username}},

Thanks for signing up. Please confirm your email address by opening the link below:

{{.Link}}

If you did not create an account you can ignore this message.
`))

	resetTmpl = template.Must(template.New("reset").Parse(`Hi {{.Username}},

We received a request to reset your password. Open the link below to choose a new one:

{{.Link}}

The link works once and expires soon. If you did not ask for a reset, no action is needed.
`))

	welcomeTmpl = template.Must(template.New("welcome").Parse(`Hi {{.Username}},

Your email address is confirmed. Welcome aboard!
`))
)

type templateData struct {
	Username string
	Link     string
}

// Renderer turns notification requests into Messages. Links point at the
// public application URL.
type Renderer struct {
	base *url.URL
}

func NewRenderer(appURL string) (*Renderer, error) {
	u, err := url.Parse(appURL)
	if err != nil {
		return nil, fmt.Errorf("parse app url: %w", err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("app url %q is not absolute", appURL)
	}
	return &Renderer{base: u}, nil
}

// VerificationLink returns <APP_URL>/verify-email?token=<token>.
func (r *Renderer) VerificationLink(token string) string {
	return r.link("verify-email", token)
}

// ResetLink returns <APP_URL>/reset-password?token=<token>.
func (r *Renderer) ResetLink(token string) string {
	return r.link("reset-password", token)
}

func (r *Renderer) Verification(to, username, token string) (*Message, error) {
	return r.render(KindVerification, to, "Verify your email address", verificationTmpl,
		templateData{Username: username, Link: r.VerificationLink(token)})
}

func (r *Renderer) PasswordReset(to, username, token string) (*Message, error) {
	return r.render(KindPasswordReset, to, "Reset your password", resetTmpl,
		templateData{Username: username, Link: r.ResetLink(token)})
}

func (r *Renderer) Welcome(to, username string) (*Message, error) {
	return r.render(KindWelcome, to, "Welcome!", welcomeTmpl, templateData{Username: username})
}

func (r *Renderer) link(path, token string) string {
	u := r.base.JoinPath(path)
	q := url.Values{}
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func (r *Renderer) render(kind Kind, to, subject string, t *template.Template, data templateData) (*Message, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", kind, err)
	}
	return &Message{ID: uuid.NewString(), Kind: kind, To: to, Subject: subject, Body: buf.String()}, nil
}
