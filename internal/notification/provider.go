package notification

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"slices"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/tphakala/safeguard-go/internal/privacy"
)

// Provider delivers rendered messages to one external service.
type Provider interface {
	Name() string
	Send(ctx context.Context, msg *Message) error
}

// Filter is implemented by providers that decline some messages.
type Filter interface {
	Accepts(msg *Message) bool
}

var ErrNoRecipient = errors.New("no notification recipient configured")

// scrub hides service URLs, which carry tokens and passwords.
func scrub(err error) error {
	return privacy.WrapErrorFunc(err, privacy.HideURLs)
}

func firstError(errs []error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

// ShoutrrrProvider sends through one shoutrrr router covering all its URLs.
type ShoutrrrProvider struct {
	name   string
	urls   []string
	sender *router.ServiceRouter
}

// NewShoutrrrProvider validates urls and builds the sender.
func NewShoutrrrProvider(name string, urls []string, timeout time.Duration) (*ShoutrrrProvider, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "shoutrrr"
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("%s: at least one URL is required", name)
	}
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, scrub(err))
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return &ShoutrrrProvider{name: name, urls: slices.Clone(urls), sender: sender}, nil
}

func (s *ShoutrrrProvider) Name() string { return s.name }

// Send delivers msg to every configured URL and returns the first failure.
func (s *ShoutrrrProvider) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := stypes.Params{}
	if msg.Title != "" {
		params.SetTitle(msg.Title)
	}
	return scrub(firstError(s.sender.Send(msg.Body, &params)))
}

// RecipientFunc resolves the email address for a user.
type RecipientFunc func(userID string) (string, bool)

// SendFunc delivers msg to a fully resolved service URL.
type SendFunc func(ctx context.Context, serviceURL string, msg *Message) error

// EmailProvider mails alerts to the address in each user's preferences. The
// base URL is a shoutrrr smtp:// URL without a recipient.
type EmailProvider struct {
	base       *url.URL
	recipients RecipientFunc
	send       SendFunc
}

// NewEmailProvider creates an email provider. A nil send uses shoutrrr.
func NewEmailProvider(baseURL string, recipients RecipientFunc, send SendFunc) (*EmailProvider, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("email: %w", scrub(err))
	}
	if u.Scheme != "smtp" {
		return nil, fmt.Errorf("email: unsupported scheme %q, want smtp", u.Scheme)
	}
	if recipients == nil {
		return nil, fmt.Errorf("email: %w", ErrNoRecipient)
	}
	if send == nil {
		send = sendShoutrrr
	}
	return &EmailProvider{base: u, recipients: recipients, send: send}, nil
}

func (e *EmailProvider) Name() string { return "email" }

// Accepts declines users without an enabled email address.
func (e *EmailProvider) Accepts(msg *Message) bool {
	_, ok := e.recipients(msg.UserID)
	return ok
}

func (e *EmailProvider) Send(ctx context.Context, msg *Message) error {
	to, ok := e.recipients(msg.UserID)
	if !ok {
		return ErrNoRecipient
	}
	return e.send(ctx, e.urlFor(to), msg)
}

func (e *EmailProvider) urlFor(to string) string {
	u := *e.base
	q := u.Query()
	q.Set("toaddresses", to)
	u.RawQuery = q.Encode()
	return u.String()
}

func sendShoutrrr(ctx context.Context, serviceURL string, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sender, err := shoutrrr.CreateSender(serviceURL)
	if err != nil {
		return scrub(err)
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	params := stypes.Params{}
	params.SetTitle(msg.Title)
	return scrub(firstError(sender.Send(msg.Body, &params)))
}
