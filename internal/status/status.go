// Package status normalizes provider send results into one per-recipient
// aggregate that looks the same regardless of which provider produced it.
package status

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// DeliveryStatus is the canonical outcome for one recipient.
type DeliveryStatus string

const (
	Queued   DeliveryStatus = "queued"
	Sent     DeliveryStatus = "sent"
	Rejected DeliveryStatus = "rejected"
	Invalid  DeliveryStatus = "invalid"
	Failed   DeliveryStatus = "failed"
	Unknown  DeliveryStatus = "unknown"
)

// IDMode describes how a provider issues message identifiers.
type IDMode int

const (
	// NoID means the provider returns no identifier at all.
	NoID IDMode = iota
	// SharedID means one identifier covers every recipient of the request.
	SharedID
	// PerRecipientID means each recipient gets its own identifier.
	PerRecipientID
)

// RecipientStatus is the outcome for a single recipient.
type RecipientStatus struct {
	Status    DeliveryStatus `json:"status"`
	MessageID string         `json:"message_id,omitempty"`
}

// Result is one recipient's outcome as reported by a provider adapter.
type Result struct {
	Address   string
	Status    DeliveryStatus
	MessageID string
}

// Set is the set of distinct statuses observed in a send.
type Set map[DeliveryStatus]struct{}

// NewSet returns a set holding the given statuses.
func NewSet(statuses ...DeliveryStatus) Set {
	s := make(Set, len(statuses))
	for _, st := range statuses {
		s[st] = struct{}{}
	}
	return s
}

// Has reports whether st was observed.
func (s Set) Has(st DeliveryStatus) bool {
	_, ok := s[st]
	return ok
}

// Slice returns the members in sorted order.
func (s Set) Slice() []DeliveryStatus {
	out := lo.Keys(s)
	slices.Sort(out)
	return out
}

func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

// Status is the normalized result of one send. It is created once per send
// attempt and never reused.
type Status struct {
	// Recipients maps each recipient address to its outcome.
	Recipients map[string]RecipientStatus `json:"recipients"`
	// Addresses lists the keys of Recipients in input order, since the map
	// itself has none.
	Addresses []string `json:"addresses"`
	// Set holds exactly the distinct statuses found in Recipients.
	Set Set `json:"status"`
	// MessageID is the identifier shared by every recipient. It is empty
	// when the provider issued none or the recipients' ids differ.
	MessageID string `json:"message_id,omitempty"`
	// ProviderID is the provider's own request identifier, when it sends one
	// alongside the message id.
	ProviderID string `json:"provider_id,omitempty"`
}

// New builds the aggregate from per-recipient results. Later duplicates of an
// address are ignored.
func New(results []Result) *Status {
	st := &Status{
		Recipients: make(map[string]RecipientStatus, len(results)),
		Addresses:  make([]string, 0, len(results)),
	}
	for _, r := range results {
		if _, ok := st.Recipients[r.Address]; ok {
			continue
		}
		st.Recipients[r.Address] = RecipientStatus{Status: r.Status, MessageID: r.MessageID}
		st.Addresses = append(st.Addresses, r.Address)
	}

	kept := lo.Map(st.Addresses, func(addr string, _ int) RecipientStatus {
		return st.Recipients[addr]
	})
	st.Set = NewSet(lo.Map(kept, func(r RecipientStatus, _ int) DeliveryStatus { return r.Status })...)

	ids := lo.Uniq(lo.Map(kept, func(r RecipientStatus, _ int) string { return r.MessageID }))
	if len(ids) == 1 {
		st.MessageID = ids[0]
	}
	return st
}

// Uniform builds the aggregate for a provider that reports one status and one
// shared id for the whole request.
func Uniform(addresses []string, s DeliveryStatus, messageID string) *Status {
	return New(lo.Map(addresses, func(addr string, _ int) Result {
		return Result{Address: addr, Status: s, MessageID: messageID}
	}))
}

// Recipient returns the outcome for addr, matching case-insensitively.
func (s *Status) Recipient(addr string) (RecipientStatus, bool) {
	if r, ok := s.Recipients[addr]; ok {
		return r, true
	}
	for k, r := range s.Recipients {
		if strings.EqualFold(k, addr) {
			return r, true
		}
	}
	return RecipientStatus{}, false
}

var messageIDPattern = regexp.MustCompile(`^<[^<>@\s]+@([^<>@\s]+)>$`)

// CheckMessageID verifies that id has the "<local@domain>" form and that its
// domain matches the sender's.
func CheckMessageID(id, senderDomain string) error {
	m := messageIDPattern.FindStringSubmatch(id)
	if m == nil {
		return fmt.Errorf("message id %q is not of the form <local@domain>", id)
	}
	if !strings.EqualFold(m[1], senderDomain) {
		return fmt.Errorf("message id %q domain does not match sender domain %q", id, senderDomain)
	}
	return nil
}
