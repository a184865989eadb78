package collect

import (
	"strings"
)

// selfMarker stands in for the authenticated user in participant lists.
const selfMarker = "me"

var subjectPrefixes = []string{"re:", "fwd:", "fw:"}

// GroupThreads assembles the flat message list into threads, preserving the
// provider-supplied order of both threads and their member messages.
func GroupThreads(emails []Email, owner string) []Thread {
	order := []string{}
	byThread := map[string][]Email{}
	for _, email := range emails {
		if _, seen := byThread[email.ThreadId]; !seen {
			order = append(order, email.ThreadId)
		}
		byThread[email.ThreadId] = append(byThread[email.ThreadId], email)
	}

	threads := make([]Thread, 0, len(order))
	for _, threadId := range order {
		threads = append(threads, AggregateThread(threadId, byThread[threadId], owner))
	}
	return threads
}

// AggregateThread computes a thread's derived fields from its messages in a
// single pass. msgs must be non-empty and in provider (chronological) order.
// The result is a pure function of msgs and owner: the same inputs always
// produce the same aggregate.
func AggregateThread(threadId string, msgs []Email, owner string) Thread {
	thread := Thread{ThreadId: threadId, MessageCount: len(msgs)}

	messages := make([]Email, len(msgs))
	copy(messages, msgs)

	subjectSet := false
	var participants []string
	seenParticipant := map[string]bool{}
	var labels []string
	seenLabel := map[string]bool{}

	addParticipant := func(name string) {
		if name == "" {
			return
		}
		key := strings.ToLower(name)
		if seenParticipant[key] {
			return
		}
		seenParticipant[key] = true
		participants = append(participants, name)
	}

	for i := range messages {
		message := &messages[i]
		message.IsSent = isSentMessage(*message, owner)

		if !subjectSet && message.Subject != "" {
			thread.Subject = StripSubjectPrefixes(message.Subject)
			subjectSet = true
		}

		addParticipant(DisplayName(message.From))
		for _, recipient := range SplitAddressList(message.To) {
			addParticipant(DisplayName(recipient))
		}

		for _, label := range message.Labels {
			if !seenLabel[label] {
				seenLabel[label] = true
				labels = append(labels, label)
			}
		}

		thread.HasUnread = thread.HasUnread || message.IsUnread
	}

	last := messages[len(messages)-1]
	thread.LastDate = last.Date
	thread.LastSnippet = last.Snippet

	kept := make([]string, 0, len(participants))
	for _, name := range participants {
		if !matchesOwner(name, owner) {
			kept = append(kept, name)
		}
	}
	if len(kept) == 0 {
		kept = []string{selfMarker}
	}
	thread.Participants = kept
	thread.Labels = labels
	thread.Messages = messages

	return thread
}

// isSentMessage reports whether the authenticated user authored the message:
// the sender address matches the owner, or the provider marked it SENT.
func isSentMessage(message Email, owner string) bool {
	if strings.EqualFold(EmailAddress(message.From), owner) {
		return true
	}
	return hasLabel(message.Labels, "SENT")
}

// matchesOwner decides whether a collected display name refers to the
// authenticated user. Display names rarely carry the full address, so the
// match is a case-insensitive substring test in either direction, plus the
// literal self marker.
func matchesOwner(name string, owner string) bool {
	lowerName := strings.ToLower(name)
	lowerOwner := strings.ToLower(owner)
	if lowerName == selfMarker {
		return true
	}
	return strings.Contains(lowerName, lowerOwner) || strings.Contains(lowerOwner, lowerName)
}

// StripSubjectPrefixes removes any run of reply/forward markers ("Re:",
// "Fwd:", "FW:", case-insensitive) from the front of a subject. A subject
// without a marker passes through unchanged.
func StripSubjectPrefixes(subject string) string {
	s := strings.TrimSpace(subject)
	for {
		stripped := false
		lower := strings.ToLower(s)
		for _, prefix := range subjectPrefixes {
			if strings.HasPrefix(lower, prefix) {
				s = strings.TrimSpace(s[len(prefix):])
				stripped = true
				break
			}
		}
		if !stripped {
			return s
		}
	}
}

// DisplayName extracts a human-readable name from an address header value:
// the quoted or bare name before "<", otherwise the local part of a bare
// address, otherwise the trimmed value itself.
func DisplayName(address string) string {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return ""
	}
	if idx := strings.Index(trimmed, "<"); idx >= 0 {
		name := strings.TrimSpace(trimmed[:idx])
		name = strings.ReplaceAll(name, `"`, "")
		if name != "" {
			return name
		}
		// "<bob@x.com>" with no display name: fall through on the address.
		trimmed = strings.Trim(trimmed[idx:], "<> ")
	}
	if at := strings.Index(trimmed, "@"); at > 0 {
		return trimmed[:at]
	}
	return trimmed
}

// EmailAddress extracts the bare address from an address header value: the
// part inside angle brackets when present, the trimmed value otherwise.
func EmailAddress(address string) string {
	trimmed := strings.TrimSpace(address)
	open := strings.Index(trimmed, "<")
	if open < 0 {
		return trimmed
	}
	rest := trimmed[open+1:]
	if close := strings.Index(rest, ">"); close >= 0 {
		return strings.TrimSpace(rest[:close])
	}
	return strings.TrimSpace(rest)
}

// SplitAddressList splits a To header on commas, ignoring commas inside
// double-quoted display names (`"Doe, Jane" <jane@x.com>`).
func SplitAddressList(header string) []string {
	var out []string
	var current strings.Builder
	inQuotes := false
	for _, r := range header {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			current.WriteRune(r)
		case r == ',' && !inQuotes:
			if chunk := strings.TrimSpace(current.String()); chunk != "" {
				out = append(out, chunk)
			}
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	if chunk := strings.TrimSpace(current.String()); chunk != "" {
		out = append(out, chunk)
	}
	return out
}
