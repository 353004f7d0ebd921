package scylla

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"otp-service/internal/bucketing"
	"otp-service/internal/encryption"
	"otp-service/internal/model"
	"otp-service/internal/util"
)

// VerificationRecord is one durable audit row. The raw target is stored
// only in encrypted form; investigations join on target_hash.
type VerificationRecord struct {
	TargetBucket    int       `json:"target_bucket"`
	TimeBucket      int64     `json:"time_bucket"`
	CreatedAt       time.Time `json:"created_at"`
	EventID         string    `json:"event_id"`
	TargetHash      string    `json:"target_hash"`
	TargetEncrypted string    `json:"target_encrypted"`
	TargetKeyID     string    `json:"target_key_id"`
	Channel         string    `json:"channel"`
	EventType       string    `json:"event_type"`
	Outcome         string    `json:"outcome"`
	Attempts        int       `json:"attempts"`
	Provider        string    `json:"provider"`
}

// AuditRepository persists verification outcomes to the otp_verifications
// table, partitioned by (target_bucket, time_bucket). Implements
// model.AuditSink.
type AuditRepository struct {
	client     *ScyllaClient
	bucketing  *bucketing.BucketingManager
	encryption *encryption.EncryptionManager
}

func NewAuditRepository(client *ScyllaClient, bm *bucketing.BucketingManager, em *encryption.EncryptionManager) *AuditRepository {
	return &AuditRepository{
		client:     client,
		bucketing:  bm,
		encryption: em,
	}
}

// RecordOutcome writes one audit row for an issuance or verification event.
func (r *AuditRepository) RecordOutcome(ctx context.Context, target string, event *model.SecurityEvent) error {
	encrypted, err := r.encryption.EncryptTarget(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to encrypt audit target: %w", err)
	}

	envelope, err := json.Marshal(encrypted)
	if err != nil {
		return fmt.Errorf("failed to marshal encrypted target: %w", err)
	}

	eventID := event.EventID
	if eventID == "" {
		eventID = uuid.New().String()
	}

	rec := &VerificationRecord{
		TargetBucket:    r.bucketing.TargetBucket(event.TargetHash),
		TimeBucket:      r.bucketing.TimeBucket(event.OccurredAt),
		CreatedAt:       event.OccurredAt.UTC(),
		EventID:         eventID,
		TargetHash:      event.TargetHash,
		TargetEncrypted: string(envelope),
		TargetKeyID:     encrypted.KeyID,
		Channel:         event.Channel.String(),
		EventType:       event.Type,
		Outcome:         event.Outcome,
		Attempts:        event.Attempts,
		Provider:        event.Provider,
	}

	query := r.client.Prepared.InsertVerification.Bind(
		rec.TargetBucket, rec.TimeBucket, rec.CreatedAt, rec.EventID,
		rec.TargetHash, rec.TargetEncrypted, rec.TargetKeyID, rec.Channel,
		rec.EventType, rec.Outcome, rec.Attempts, rec.Provider,
	).WithContext(ctx)

	if err := r.client.ExecuteWithRetry(query, 2); err != nil {
		util.Error("Failed to record verification outcome",
			zap.String("target_hash", rec.TargetHash),
			zap.String("event_type", rec.EventType),
			zap.Error(err))
		return fmt.Errorf("failed to record verification outcome: %w", err)
	}

	util.Debug("Verification outcome recorded",
		zap.String("event_id", rec.EventID),
		zap.String("event_type", rec.EventType),
		zap.String("outcome", rec.Outcome),
		zap.Int("target_bucket", rec.TargetBucket))

	return nil
}

// RecentForTarget returns the audit rows for one target hash within the
// time bucket containing the given instant. Support tooling only.
func (r *AuditRepository) RecentForTarget(ctx context.Context, targetHash string, at time.Time) ([]*VerificationRecord, error) {
	targetBucket := r.bucketing.TargetBucket(targetHash)
	timeBucket := r.bucketing.TimeBucket(at)

	iter := r.client.Prepared.SelectRecentForHash.Bind(targetBucket, timeBucket, targetHash).
		WithContext(ctx).Iter()

	var records []*VerificationRecord
	for {
		rec := &VerificationRecord{
			TargetBucket: targetBucket,
			TimeBucket:   timeBucket,
		}
		if !iter.Scan(&rec.CreatedAt, &rec.EventID, &rec.TargetHash, &rec.Channel,
			&rec.EventType, &rec.Outcome, &rec.Attempts, &rec.Provider) {
			break
		}
		records = append(records, rec)
	}

	if err := iter.Close(); err != nil {
		if err == gocql.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read audit records: %w", err)
	}

	return records, nil
}
