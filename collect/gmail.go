package collect

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const inboxLabel = "INBOX"

// Fetch pulls up to limit inbox messages for one user, assembles the
// configured collection and overwrites that user's cache entry. A missing
// credential returns (nil, nil): the user has simply not authenticated yet,
// which callers must not confuse with a fetch failure. Any item-level failure
// aborts the whole fetch; nothing partial is cached.
func (s *Service) Fetch(ctx context.Context, userEmail string, limit int64) (*FetchResult, error) {
	cred, found, err := s.creds.GetCredential(ctx, userEmail)
	if err != nil {
		return nil, err
	}
	if !found {
		slog.Info("No credential stored, user needs to authenticate", "user", userEmail)
		return nil, nil
	}

	cred, err = s.EnsureValid(ctx, cred)
	if err != nil {
		return nil, err
	}

	gmailService, err := s.gmailService(ctx, cred.AccessToken)
	if err != nil {
		return nil, err
	}

	listResponse, err := gmailService.Users.Messages.List("me").
		LabelIds(inboxLabel).MaxResults(limit).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list inbox messages for %s: %w", userEmail, upstreamErr(err))
	}

	emails := make([]Email, 0, len(listResponse.Messages))
	for _, ref := range listResponse.Messages {
		if err := s.throttler.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}
		message, err := gmailService.Users.Messages.Get("me", ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to get message %s for %s: %w", ref.Id, userEmail, upstreamErr(err))
		}
		email := mapMessage(message)
		email.IsSent = isSentMessage(email, cred.UserEmail)
		emails = append(emails, email)
	}

	result := &FetchResult{UserEmail: cred.UserEmail, Threaded: s.groupThreads}
	var payload []byte
	if s.groupThreads {
		result.Threads = GroupThreads(emails, cred.UserEmail)
		payload, err = json.Marshal(result.Threads)
	} else {
		result.Emails = emails
		payload, err = json.Marshal(emails)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to serialize fetched mailbox for %s: %w", userEmail, err)
	}

	if err := s.cache.SaveMailbox(ctx, cred.UserEmail, payload, s.groupThreads); err != nil {
		return nil, err
	}

	slog.Info("Fetched mailbox", "user", cred.UserEmail, "items", result.Count(), "threaded", s.groupThreads)
	return result, nil
}

func (s *Service) gmailService(ctx context.Context, accessToken string) (*gmail.Service, error) {
	tokenSrc := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	opts := append([]option.ClientOption{option.WithTokenSource(tokenSrc)}, s.apiOptions...)
	gmailService, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return gmailService, nil
}

// mapMessage flattens a raw provider message into the served document shape.
func mapMessage(message *gmail.Message) Email {
	var headers []*gmail.MessagePartHeader
	if message.Payload != nil {
		headers = message.Payload.Headers
	}
	return Email{
		Id:       message.Id,
		ThreadId: message.ThreadId,
		Snippet:  message.Snippet,
		Subject:  getHeader(headers, "Subject"),
		From:     getHeader(headers, "From"),
		To:       getHeader(headers, "To"),
		Date:     getHeader(headers, "Date"),
		Body:     extractBody(message.Payload),
		IsUnread: hasLabel(message.LabelIds, "UNREAD"),
		Labels:   message.LabelIds,
	}
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

func hasLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}

// extractBody picks the best text body out of a message payload: a directly
// attached body first, then the first text/plain part, then the first
// text/html part, then a recursive search through nested multiparts.
func extractBody(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}

	if payload.Body != nil && payload.Body.Data != "" {
		return decodeBody(payload.Body.Data)
	}

	for _, part := range payload.Parts {
		if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
			return decodeBody(part.Body.Data)
		}
	}
	for _, part := range payload.Parts {
		if part.MimeType == "text/html" && part.Body != nil && part.Body.Data != "" {
			return decodeBody(part.Body.Data)
		}
	}
	for _, part := range payload.Parts {
		if nested := extractBody(part); nested != "" {
			return nested
		}
	}

	return ""
}

// decodeBody reverses the provider's URL-safe base64 variant: translate the
// URL-safe alphabet back to standard, re-pad, then standard-decode.
func decodeBody(data string) string {
	translated := strings.NewReplacer("-", "+", "_", "/").Replace(data)
	if pad := len(translated) % 4; pad != 0 {
		translated += strings.Repeat("=", 4-pad)
	}
	decoded, err := base64.StdEncoding.DecodeString(translated)
	if err != nil {
		return ""
	}
	return string(decoded)
}

// upstreamErr annotates provider rejections with their HTTP status so the
// failure is diagnosable from logs alone.
func upstreamErr(err error) error {
	var googleErr *googleapi.Error
	if errors.As(err, &googleErr) {
		if googleErr.Code == http.StatusTooManyRequests {
			return fmt.Errorf("provider throttled the request: %w", err)
		}
		return fmt.Errorf("provider rejected the request (status %d): %w", googleErr.Code, err)
	}
	return err
}
