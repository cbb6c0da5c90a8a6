// Package tickets issues ticket identifiers, signs the QR payload printed on
// each ticket and renders the ticket PDF.
package tickets

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidPayload = errors.New("invalid ticket payload")

const prefix = "TKT-"

// NewTicketID returns a unique, upper-case ticket identifier.
func NewTicketID() string {
	return prefix + strings.ToUpper(uuid.NewString())
}

// Signer produces and checks the HMAC carried by a ticket's QR code.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

func (s *Signer) signature(registrationID uuid.UUID, ticketID string, eventID uuid.UUID) string {
	data := fmt.Sprintf("%s:%s:%s", registrationID.String(), ticketID, eventID.String())
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// Payload is the text encoded into the ticket QR code.
func (s *Signer) Payload(registrationID uuid.UUID, ticketID string, eventID uuid.UUID) string {
	return fmt.Sprintf("ticket:%s;event:%s;signature:%s",
		ticketID,
		eventID.String(),
		s.signature(registrationID, ticketID, eventID),
	)
}

// Scanned is a parsed but not yet verified QR payload.
type Scanned struct {
	TicketID  string
	EventID   uuid.UUID
	Signature string
}

func Parse(payload string) (*Scanned, error) {
	parts := strings.Split(strings.TrimSpace(payload), ";")
	if len(parts) != 3 ||
		!strings.HasPrefix(parts[0], "ticket:") ||
		!strings.HasPrefix(parts[1], "event:") ||
		!strings.HasPrefix(parts[2], "signature:") {
		return nil, ErrInvalidPayload
	}

	eventID, err := uuid.Parse(strings.TrimPrefix(parts[1], "event:"))
	if err != nil {
		return nil, ErrInvalidPayload
	}
	scanned := &Scanned{
		TicketID:  strings.TrimPrefix(parts[0], "ticket:"),
		EventID:   eventID,
		Signature: strings.TrimPrefix(parts[2], "signature:"),
	}
	if scanned.TicketID == "" || scanned.Signature == "" {
		return nil, ErrInvalidPayload
	}
	return scanned, nil
}

// Verify reports whether scanned was issued for the given registration.
func (s *Signer) Verify(registrationID uuid.UUID, eventID uuid.UUID, scanned *Scanned) bool {
	if scanned == nil || scanned.EventID != eventID {
		return false
	}
	expected := s.signature(registrationID, scanned.TicketID, eventID)
	return hmac.Equal([]byte(expected), []byte(scanned.Signature))
}
