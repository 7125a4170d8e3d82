package source

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"sqr/internal/gauth"
	"sqr/internal/logger"
	"sqr/pkg/models"
)

// Gmail reads invoice attachments from a mailbox with the read-only scope. The service
// account impersonates User through domain-wide delegation.
type Gmail struct {
	service *gmail.Service
	user    string
	query   string
	max     int64
	log     zerolog.Logger
}

// NewGmail connects to the mailbox of user. query is a Gmail search expression; max bounds
// how many messages are inspected.
func NewGmail(ctx context.Context, creds gauth.Source, user, query string, max int) (*Gmail, error) {
	const op = "NewGmail"

	if strings.TrimSpace(user) == "" {
		return nil, fmt.Errorf("%s: GMAIL_USER is required", op)
	}

	client, err := creds.HTTPClient(ctx, user, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	service, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create gmail service: %w", op, err)
	}
	return newGmail(service, user, query, max), nil
}

func newGmail(service *gmail.Service, user, query string, max int) *Gmail {
	if max <= 0 {
		max = 100
	}
	return &Gmail{
		service: service,
		user:    user,
		query:   query,
		max:     int64(max),
		log:     logger.WithComponent("source.gmail"),
	}
}

// Fetch implements Source. Messages are returned newest first as Gmail lists them; each
// attachment becomes one document.
func (g *Gmail) Fetch(ctx context.Context) ([]models.Document, error) {
	const op = "Gmail.Fetch"

	ids, err := g.listMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var docs []models.Document
	for _, id := range ids {
		msg, err := g.service.Users.Messages.Get(g.user, id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("%s: get message %s: %w", op, id, err)
		}

		found, err := g.attachments(ctx, msg)
		if err != nil {
			return nil, fmt.Errorf("%s: message %s: %w", op, id, err)
		}
		docs = append(docs, found...)
	}

	g.log.Info().Int("messages", len(ids)).Int("documents", len(docs)).Str("query", g.query).Msg("Collected documents from mailbox")
	return docs, nil
}

func (g *Gmail) listMessages(ctx context.Context) ([]string, error) {
	var ids []string
	call := g.service.Users.Messages.List(g.user).Q(g.query).MaxResults(g.max)

	err := call.Pages(ctx, func(page *gmail.ListMessagesResponse) error {
		for _, m := range page.Messages {
			if int64(len(ids)) >= g.max {
				return errStopPaging
			}
			ids = append(ids, m.Id)
		}
		if int64(len(ids)) >= g.max {
			return errStopPaging
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopPaging) {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return ids, nil
}

var errStopPaging = errors.New("enough messages")

func (g *Gmail) attachments(ctx context.Context, msg *gmail.Message) ([]models.Document, error) {
	var docs []models.Document
	var walk func(part *gmail.MessagePart) error
	walk = func(part *gmail.MessagePart) error {
		if part == nil {
			return nil
		}
		if part.Filename != "" && Accepted(part.Filename) && part.Body != nil {
			data, err := g.partData(ctx, msg.Id, part.Body)
			if err != nil {
				return fmt.Errorf("attachment %s: %w", part.Filename, err)
			}
			docs = append(docs, models.Document{
				Filename: part.Filename,
				Data:     data,
				Origin:   "gmail:" + msg.Id,
			})
		}
		for _, child := range part.Parts {
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(msg.Payload); err != nil {
		return nil, err
	}
	return docs, nil
}

func (g *Gmail) partData(ctx context.Context, messageID string, body *gmail.MessagePartBody) ([]byte, error) {
	encoded := body.Data
	if encoded == "" && body.AttachmentId != "" {
		att, err := g.service.Users.Messages.Attachments.Get(g.user, messageID, body.AttachmentId).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		encoded = att.Data
	}
	return decodeBase64URL(encoded)
}

// decodeBase64URL decodes Gmail body data, which is URL-safe base64 with or without
// padding.
func decodeBase64URL(s string) ([]byte, error) {
	if data, err := base64.URLEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}
