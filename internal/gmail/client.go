package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	// ChunkSize bounds how many detail fetches run against the API at
	// once, keeping each batch under the provider's rate limit.
	ChunkSize = 20

	// Folder labels understood by the sync path
	FolderInbox = "INBOX"
	FolderSent  = "SENT"

	// maxPageSize is the provider's cap on one list page
	maxPageSize = 500
)

var (
	// ErrAttachmentNotFound indicates the attachment no longer exists remotely
	ErrAttachmentNotFound = errors.New("attachment not found")
)

// FetchResult carries the outcome of one message detail fetch. A failed
// item keeps its Err set without affecting siblings in the same chunk.
type FetchResult struct {
	ID      string
	Message *gmailapi.Message
	Err     error
}

// SendInput describes an outgoing message
type SendInput struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// OAuthConfig builds the Google OAuth2 config used for the authorization
// handshake and for token refresh.
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes: []string{
			gmailapi.GmailModifyScope,
			gmailapi.GmailSendScope,
			"https://www.googleapis.com/auth/userinfo.email",
		},
		Endpoint: google.Endpoint,
	}
}

// Client is a typed wrapper over the Gmail API for a single mailbox
type Client struct {
	svc *gmailapi.Service
}

// NewClient builds a Gmail client from an OAuth token. The token source
// refreshes transparently if the access token expires mid-session.
func NewClient(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token) (*Client, error) {
	svc, err := gmailapi.NewService(ctx, option.WithTokenSource(cfg.TokenSource(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// ListMessageIDs returns up to limit message ids carrying the given
// folder label, newest first. Listing is bounded; there is no crawling
// past the caller's limit.
func (c *Client) ListMessageIDs(ctx context.Context, folder string, limit int64) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}

	ids := make([]string, 0, limit)
	pageToken := ""
	for int64(len(ids)) < limit {
		pageSize := limit - int64(len(ids))
		if pageSize > maxPageSize {
			pageSize = maxPageSize
		}

		call := c.svc.Users.Messages.List("me").LabelIds(folder).MaxResults(pageSize).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list messages in %s: %w", folder, err)
		}

		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		if resp.NextPageToken == "" || len(resp.Messages) == 0 {
			break
		}
		pageToken = resp.NextPageToken
	}
	return ids, nil
}

// FetchDetails fetches full message payloads in sequential chunks of
// ChunkSize. Items within a chunk are fetched concurrently; one item's
// failure is recorded in its FetchResult and does not abort siblings or
// later chunks.
func (c *Client) FetchDetails(ctx context.Context, ids []string) []FetchResult {
	results := make([]FetchResult, 0, len(ids))

	for start := 0; start < len(ids); start += ChunkSize {
		end := start + ChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		chunkResults := make([]FetchResult, len(chunk))
		var wg sync.WaitGroup
		for i, id := range chunk {
			wg.Add(1)
			go func(i int, id string) {
				defer wg.Done()
				msg, err := c.svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
				chunkResults[i] = FetchResult{ID: id, Message: msg, Err: err}
			}(i, id)
		}
		wg.Wait()

		results = append(results, chunkResults...)
	}
	return results
}

// FetchAttachment downloads and decodes one attachment's bytes
func (c *Client) FetchAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	att, err := c.svc.Users.Messages.Attachments.Get("me", messageID, attachmentID).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == 404 {
			return nil, ErrAttachmentNotFound
		}
		return nil, fmt.Errorf("fetch attachment %s: %w", attachmentID, err)
	}
	return decodeBody(att.Data)
}

// Profile returns the mailbox address and its current history cursor
func (c *Client) Profile(ctx context.Context) (string, uint64, error) {
	p, err := c.svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return "", 0, fmt.Errorf("get profile: %w", err)
	}
	return p.EmailAddress, p.HistoryId, nil
}

// Send builds an RFC 822 message and sends it from this mailbox,
// returning the provider id of the sent message.
func (c *Client) Send(ctx context.Context, in SendInput) (string, error) {
	msg := &gmailapi.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(buildRawMessage(in, ""))),
	}
	sent, err := c.svc.Users.Messages.Send("me", msg).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return sent.Id, nil
}

// Reply sends a message into an existing conversation. inReplyTo is the
// RFC 822 Message-ID of the message being answered; it may be empty, in
// which case the provider threads by thread id alone.
func (c *Client) Reply(ctx context.Context, threadID, inReplyTo string, in SendInput) (string, error) {
	msg := &gmailapi.Message{
		Raw:      base64.URLEncoding.EncodeToString([]byte(buildRawMessage(in, inReplyTo))),
		ThreadId: threadID,
	}
	sent, err := c.svc.Users.Messages.Send("me", msg).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("send reply: %w", err)
	}
	return sent.Id, nil
}

// buildRawMessage assembles a plain-text RFC 822 message
func buildRawMessage(in SendInput, inReplyTo string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", in.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(in.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", in.Subject)
	if inReplyTo != "" {
		fmt.Fprintf(&b, "In-Reply-To: %s\r\n", inReplyTo)
		fmt.Fprintf(&b, "References: %s\r\n", inReplyTo)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(in.Body)
	return b.String()
}

// decodeBody decodes Gmail's base64url body data, tolerating the
// missing padding the API routinely omits.
func decodeBody(data string) ([]byte, error) {
	if m := len(data) % 4; m != 0 {
		data += strings.Repeat("=", 4-m)
	}
	return base64.URLEncoding.DecodeString(data)
}
