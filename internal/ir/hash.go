package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainPlan = "prioritize/plan/v1"
	DomainMove = "prioritize/move/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// PlanID computes the content-addressed identity of a re-ranking plan.
//
// Two runs of the same policy over the same snapshot produce the same PlanID,
// which lets the move journal recognise a retried run and skip moves that
// were already applied. The run ID (UUIDv7) is intentionally excluded: it
// identifies "when", the PlanID identifies "what".
func PlanID(policy string, oldKeys, newKeys []string) (string, error) {
	obj := map[string]any{
		"policy": policy,
		"old":    oldKeys,
		"new":    newKeys,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("PlanID: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainPlan, canonical), nil
}

// MoveID computes the identity of one move within a plan.
func MoveID(planID string, m Move) (string, error) {
	obj := map[string]any{
		"plan_id":   planID,
		"seq":       m.Seq,
		"item_key":  m.ItemKey,
		"after_key": m.AfterKey,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("MoveID: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainMove, canonical), nil
}

// MustPlanID is like PlanID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustPlanID(policy string, oldKeys, newKeys []string) string {
	id, err := PlanID(policy, oldKeys, newKeys)
	if err != nil {
		panic(err)
	}
	return id
}

// MustMoveID is like MoveID but panics on error.
func MustMoveID(planID string, m Move) string {
	id, err := MoveID(planID, m)
	if err != nil {
		panic(err)
	}
	return id
}
