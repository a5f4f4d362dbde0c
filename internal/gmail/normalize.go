package gmail

import (
	"net/mail"
	"regexp"
	"strings"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"
)

const (
	// defaultSubject stands in for a missing Subject header
	defaultSubject = "(No Subject)"

	// maxPartDepth bounds the MIME tree walk against pathological nesting
	maxPartDepth = 50
)

// Address is one parsed correspondent. Name is empty when the header
// carried only a bare address.
type Address struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// AttachmentMeta describes one attachment found in the part tree. The
// binary itself is fetched separately via the attachment id.
type AttachmentMeta struct {
	GmailAttachmentID string
	Filename          string
	MimeType          string
	Size              int64
}

// Canonical is the provider-agnostic form of a fetched message
type Canonical struct {
	GmailID     string
	ThreadID    string
	RFC822ID    string
	Subject     string
	Snippet     string
	Date        time.Time
	Body        string
	HTMLBody    string
	Labels      []string
	IsRead      bool
	Sender      Address
	To          []Address
	Cc          []Address
	Bcc         []Address
	ToHeader    string
	CcHeader    string
	BccHeader   string
	Attachments []AttachmentMeta
}

// addrPattern matches the "Display Name <addr>" header form
var addrPattern = regexp.MustCompile(`^(.*?)\s*<(.+?)>$`)

// Normalize turns a raw Gmail message into its canonical form. Every
// step degrades to a safe default on malformed input; normalization
// never fails outright.
func Normalize(msg *gmailapi.Message) Canonical {
	c := Canonical{
		GmailID:  msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
		Subject:  defaultSubject,
		IsRead:   true,
		Labels:   msg.LabelIds,
	}

	var headers []*gmailapi.MessagePartHeader
	if msg.Payload != nil {
		headers = msg.Payload.Headers
	}

	if v := headerValue(headers, "Subject"); v != "" {
		c.Subject = v
	}
	c.RFC822ID = headerValue(headers, "Message-ID")
	c.Sender = ParseAddress(headerValue(headers, "From"))
	c.ToHeader = headerValue(headers, "To")
	c.CcHeader = headerValue(headers, "Cc")
	c.BccHeader = headerValue(headers, "Bcc")
	c.To = ParseAddressList(c.ToHeader)
	c.Cc = ParseAddressList(c.CcHeader)
	c.Bcc = ParseAddressList(c.BccHeader)
	c.Date = parseDate(headerValue(headers, "Date"))

	for _, label := range msg.LabelIds {
		if label == "UNREAD" {
			c.IsRead = false
			break
		}
	}

	c.Body, c.HTMLBody, c.Attachments = walkParts(msg.Payload)
	c.HTMLBody = Sanitize(c.HTMLBody)

	return c
}

// headerValue returns the first header with the given name,
// case-insensitively.
func headerValue(headers []*gmailapi.MessagePartHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// ParseAddress parses one "Display Name <addr>" or bare-address string.
// Input without a recognizable address yields a zero Address, never an
// error.
func ParseAddress(raw string) Address {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Address{}
	}

	if m := addrPattern.FindStringSubmatch(raw); m != nil {
		name := strings.Trim(strings.TrimSpace(m[1]), `"`)
		return Address{Email: strings.TrimSpace(m[2]), Name: name}
	}

	if strings.Contains(raw, "@") {
		return Address{Email: raw}
	}
	return Address{}
}

// ParseAddressList splits a comma-separated recipient header into
// addresses, dropping empty entries and entries with no usable address.
func ParseAddressList(raw string) []Address {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	var out []Address
	for _, part := range strings.Split(raw, ",") {
		addr := ParseAddress(part)
		if addr.Email == "" {
			continue
		}
		out = append(out, addr)
	}
	return out
}

// parseDate parses the RFC 2822 Date header, falling back to the
// current time so an unparseable date never loses the message.
func parseDate(raw string) time.Time {
	if raw != "" {
		if t, err := mail.ParseDate(raw); err == nil {
			return t
		}
	}
	return time.Now()
}

type partFrame struct {
	part  *gmailapi.MessagePart
	depth int
}

// walkParts traverses the MIME part tree depth-first with an explicit
// stack. The first text/plain and first text/html parts encountered win;
// nested alternatives never overwrite an already-found body. Leaf parts
// carrying a filename and attachment id become attachment metadata.
func walkParts(root *gmailapi.MessagePart) (textBody, htmlBody string, atts []AttachmentMeta) {
	if root == nil {
		return
	}

	stack := []partFrame{{root, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		p := f.part
		if p == nil || f.depth > maxPartDepth {
			continue
		}

		switch {
		case p.Filename != "" && p.Body != nil && p.Body.AttachmentId != "":
			atts = append(atts, AttachmentMeta{
				GmailAttachmentID: p.Body.AttachmentId,
				Filename:          p.Filename,
				MimeType:          p.MimeType,
				Size:              p.Body.Size,
			})
		case p.Body != nil && p.Body.Data != "":
			if strings.HasPrefix(p.MimeType, "text/plain") && textBody == "" {
				if decoded, err := decodeBody(p.Body.Data); err == nil {
					textBody = string(decoded)
				}
			} else if strings.HasPrefix(p.MimeType, "text/html") && htmlBody == "" {
				if decoded, err := decodeBody(p.Body.Data); err == nil {
					htmlBody = string(decoded)
				}
			}
		}

		// Push children in reverse so the leftmost is visited first
		for i := len(p.Parts) - 1; i >= 0; i-- {
			stack = append(stack, partFrame{p.Parts[i], f.depth + 1})
		}
	}
	return
}
