// Package qr mints scannable passes for pre-approved visits.
package qr

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/Tanishk31/visiting-management/internal/crypto"
	"github.com/Tanishk31/visiting-management/internal/model"
)

// Payload is the document embedded in a pass. Scanners decode it offline, so
// it carries everything a gate needs to greet the visitor; the pass id plus
// the visit id is what the server checks on scan.
type Payload struct {
	ID           string     `json:"id"`
	VisitID      string     `json:"visitId"`
	VisitorName  string     `json:"visitorName"`
	VisitorEmail string     `json:"visitorEmail"`
	StartTime    *time.Time `json:"startTime"`
	EndTime      *time.Time `json:"endTime"`
	HostName     string     `json:"hostName"`
}

// Issuer produces PNG passes sized for phone screens.
type Issuer struct {
	size int
}

func NewIssuer() *Issuer {
	return &Issuer{size: 256}
}

// Issue encodes the visit's payload as a QR PNG and returns the pass id with
// the image as a data URI.
func (i *Issuer) Issue(v model.Visit) (string, string, error) {
	passID, err := crypto.NewPassID()
	if err != nil {
		return "", "", fmt.Errorf("minting pass id: %w", err)
	}
	payload := Payload{
		ID:           passID,
		VisitID:      v.ID,
		VisitorName:  v.VisitorName,
		VisitorEmail: v.VisitorEmail,
		StartTime:    v.StartTime,
		EndTime:      v.EndTime,
		HostName:     v.HostName,
	}

	doc, err := json.Marshal(payload)
	if err != nil {
		return "", "", fmt.Errorf("encoding pass payload: %w", err)
	}
	png, err := qrcode.Encode(string(doc), qrcode.Medium, i.size)
	if err != nil {
		return "", "", fmt.Errorf("encoding pass image: %w", err)
	}
	return payload.ID, "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// DecodePayload parses a scanned payload document.
func DecodePayload(doc []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(doc, &p); err != nil {
		return Payload{}, fmt.Errorf("decoding pass payload: %w", err)
	}
	if p.ID == "" || p.VisitID == "" {
		return Payload{}, fmt.Errorf("pass payload missing identifiers")
	}
	return p, nil
}
