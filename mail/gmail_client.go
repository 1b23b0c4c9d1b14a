// ABOUTME: Gmail API mail transport
// ABOUTME: Sends outreach, lists failure notifications and refreshes auth once on expiry
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/mb2470/onsite-affiliate-sdr-agent/models"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ErrAuthExpired is returned when a request is still unauthorized after a
// forced token refresh.
var ErrAuthExpired = errors.New("gmail authorization expired")

const (
	userID = "me"

	// maxFailureNotifications caps one reconciliation pass.
	maxFailureNotifications = 200
	pageSize                = 50
)

// TransportConfig configures a GmailTransport.
type TransportConfig struct {
	Credentials *Credentials
	FromEmail   string
	FromName    string
	Logger      *slog.Logger
	// ClientOptions are appended to the Gmail service options (endpoint overrides in tests).
	ClientOptions []option.ClientOption
}

// GmailTransport implements the engine transport on the Gmail API.
type GmailTransport struct {
	creds     *Credentials
	oauth     *oauth2.Config
	fromEmail string
	fromName  string
	logger    *slog.Logger
	opts      []option.ClientOption

	mu      sync.Mutex
	service *gmail.Service
}

func NewGmailTransport(ctx context.Context, cfg TransportConfig) (*GmailTransport, error) {
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("gmail credentials cannot be nil")
	}

	t := &GmailTransport{
		creds:     cfg.Credentials,
		oauth:     cfg.Credentials.OAuthConfig(),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    cfg.Logger,
		opts:      cfg.ClientOptions,
	}
	if t.logger == nil {
		t.logger = slog.New(slog.DiscardHandler)
	}

	if err := t.connect(ctx, cfg.Credentials.OAuthToken()); err != nil {
		return nil, err
	}
	return t, nil
}

// connect builds the Gmail service around a token source seeded with token.
func (t *GmailTransport) connect(ctx context.Context, token *oauth2.Token) error {
	// The token source outlives ctx; refreshes use a background context
	client := oauth2.NewClient(context.WithoutCancel(ctx), t.oauth.TokenSource(context.WithoutCancel(ctx), token))

	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, t.opts...)
	service, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create Gmail service: %w", err)
	}

	t.mu.Lock()
	t.service = service
	t.mu.Unlock()
	return nil
}

func (t *GmailTransport) svc() *gmail.Service {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.service
}

// withAuthRetry runs call, and on an auth failure forces a token refresh and
// runs it exactly once more.
func (t *GmailTransport) withAuthRetry(ctx context.Context, call func(*gmail.Service) error) error {
	err := call(t.svc())
	if !isAuthError(err) {
		return err
	}

	t.logger.Warn("gmail authorization rejected, refreshing token", "error", err)
	// Dropping the access token makes the source fetch a new one
	if err := t.connect(ctx, &oauth2.Token{RefreshToken: t.creds.RefreshToken}); err != nil {
		return err
	}

	err = call(t.svc())
	if isAuthError(err) {
		return fmt.Errorf("%w: %v", ErrAuthExpired, err)
	}
	return err
}

func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusUnauthorized
	}
	var retrieveErr *oauth2.RetrieveError
	return errors.As(err, &retrieveErr)
}

// Send delivers a plain-text message and returns the Gmail message id.
func (t *GmailTransport) Send(ctx context.Context, to, subject, body string) (string, error) {
	raw := BuildRawMessage(t.fromName, t.fromEmail, to, subject, body)

	var sent *gmail.Message
	err := t.withAuthRetry(ctx, func(s *gmail.Service) error {
		var err error
		sent, err = s.Users.Messages.Send(userID, &gmail.Message{Raw: raw}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	return sent.Id, nil
}

// ListFailureNotifications returns ids of mailer-daemon messages newer than
// lookbackDays.
func (t *GmailTransport) ListFailureNotifications(ctx context.Context, lookbackDays int) ([]string, error) {
	if lookbackDays <= 0 {
		lookbackDays = 7
	}
	query := fmt.Sprintf("%s newer_than:%dd", FailureQuery, lookbackDays)

	var ids []string
	pageToken := ""
	for {
		var resp *gmail.ListMessagesResponse
		err := t.withAuthRetry(ctx, func(s *gmail.Service) error {
			call := s.Users.Messages.List(userID).Q(query).MaxResults(pageSize).Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			var err error
			resp, err = call.Do()
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list failure notifications: %w", err)
		}

		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
			if len(ids) >= maxFailureNotifications {
				return ids, nil
			}
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			return ids, nil
		}
	}
}

// GetMessage fetches a full message reduced to headers and text body.
func (t *GmailTransport) GetMessage(ctx context.Context, id string) (*models.MailMessage, error) {
	var msg *gmail.Message
	err := t.withAuthRetry(ctx, func(s *gmail.Service) error {
		var err error
		msg, err = s.Users.Messages.Get(userID, id).Format("full").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}
	return toMailMessage(msg), nil
}

// Verify returns the address of the authorized mailbox.
func (t *GmailTransport) Verify(ctx context.Context) (string, error) {
	var profile *gmail.Profile
	err := t.withAuthRetry(ctx, func(s *gmail.Service) error {
		var err error
		profile, err = s.Users.GetProfile(userID).Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to verify gmail account: %w", err)
	}
	return profile.EmailAddress, nil
}
