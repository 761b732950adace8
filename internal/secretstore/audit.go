package secretstore

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"
)

// AuditEvent is one entry in a secret's hash-chained audit log (spec.md
// §4.4: "every create/get/update/rotate/delete is appended to a
// hash-chained audit log").
type AuditEvent struct {
	Sequence  int64     `json:"sequence"`
	SecretID  string    `json:"secretId"`
	Operation string    `json:"operation"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	PrevHash  string    `json:"prevHash"`
	Hash      string    `json:"hash"`
}

const (
	OpCreate = "create"
	OpGet    = "get"
	OpUpdate = "update"
	OpRotate = "rotate"
	OpDelete = "delete"
)

// appendAuditEvent computes hash_i = HMAC-SHA256(signingKey,
// canonical(event_i || hash_{i-1})) and returns the sealed event, where
// canonical(event) excludes the Hash field itself.
func appendAuditEvent(signingKey []byte, prev AuditEvent, secretID, operation, actor string, now time.Time) (AuditEvent, error) {
	event := AuditEvent{
		Sequence:  prev.Sequence + 1,
		SecretID:  secretID,
		Operation: operation,
		Actor:     actor,
		Timestamp: now,
		PrevHash:  prev.Hash,
	}
	canonical, err := canonicalAuditBytes(event)
	if err != nil {
		return AuditEvent{}, err
	}
	mac := hmac.New(sha256.New, signingKey)
	mac.Write(canonical)
	event.Hash = fmt.Sprintf("%x", mac.Sum(nil))
	return event, nil
}

// canonicalAuditBytes serializes the fields that feed the hash chain, in a
// fixed field order, deliberately excluding Hash.
func canonicalAuditBytes(e AuditEvent) ([]byte, error) {
	return json.Marshal(struct {
		Sequence  int64     `json:"sequence"`
		SecretID  string    `json:"secretId"`
		Operation string    `json:"operation"`
		Actor     string    `json:"actor"`
		Timestamp time.Time `json:"timestamp"`
		PrevHash  string    `json:"prevHash"`
	}{e.Sequence, e.SecretID, e.Operation, e.Actor, e.Timestamp, e.PrevHash})
}

// VerifyChain recomputes every link and reports the first broken sequence
// number, or 0 if the chain is intact.
func VerifyChain(signingKey []byte, events []AuditEvent) (int64, error) {
	prev := AuditEvent{}
	for _, e := range events {
		recomputed, err := appendAuditEvent(signingKey, prev, e.SecretID, e.Operation, e.Actor, e.Timestamp)
		if err != nil {
			return 0, err
		}
		if !hmac.Equal([]byte(recomputed.Hash), []byte(e.Hash)) || recomputed.PrevHash != e.PrevHash {
			return e.Sequence, nil
		}
		prev = e
	}
	return 0, nil
}
