package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

// envelopeTimeLayout is the wire format of update_date.
const envelopeTimeLayout = "2006-01-02 15:04:05"

// Envelope is one newline-delimited message from a scraper. Raw retains the
// full line so that the routed parser can decode its kind-specific payload.
type Envelope struct {
	ID          string
	ClassID     int
	VariantID   int
	UpdateDate  time.Time
	UpdateCount int
	Raw         json.RawMessage
}

// Kind returns the routing key of the envelope.
func (e *Envelope) Kind() Kind {
	return Kind{ClassID: e.ClassID, VariantID: e.VariantID}
}

// MsgID returns the dead-letter key: class id, variant id and scraper id
// concatenated.
func (e *Envelope) MsgID() string {
	return fmt.Sprintf("%d%d%s", e.ClassID, e.VariantID, e.ID)
}

type envelopeHeader struct {
	ID          *string `json:"_id"`
	ClassID     *int    `json:"class_id"`
	VariantID   *int    `json:"variant_id"`
	UpdateDate  string  `json:"update_date"`
	UpdateCount int     `json:"update_count"`
}

// ParseEnvelope decodes and validates the metadata of a wire line. The
// line must be a JSON object carrying _id, class_id and variant_id; a
// missing or unparsable update_date falls back to the current time.
func ParseEnvelope(line []byte) (*Envelope, error) {
	var hdr envelopeHeader
	if err := json.Unmarshal(line, &hdr); err != nil {
		return nil, eris.Wrap(err, "model: envelope is not a JSON object")
	}
	if hdr.ID == nil || *hdr.ID == "" {
		return nil, eris.New("model: envelope missing _id")
	}
	if hdr.ClassID == nil {
		return nil, eris.New("model: envelope missing class_id")
	}
	if hdr.VariantID == nil {
		return nil, eris.New("model: envelope missing variant_id")
	}

	updateDate := time.Now().UTC()
	if hdr.UpdateDate != "" {
		if parsed, err := time.Parse(envelopeTimeLayout, hdr.UpdateDate); err == nil {
			updateDate = parsed
		}
	}

	raw := make(json.RawMessage, len(line))
	copy(raw, line)

	return &Envelope{
		ID:          *hdr.ID,
		ClassID:     *hdr.ClassID,
		VariantID:   *hdr.VariantID,
		UpdateDate:  updateDate,
		UpdateCount: hdr.UpdateCount,
		Raw:         raw,
	}, nil
}
