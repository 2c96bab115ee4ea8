// Package repository persists behavioral snapshots for model training.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"dnssentinel/internal/profile"
)

// Store is the time-series repository contract the engine depends on.
type Store interface {
	Save(ctx context.Context, snaps []*profile.Snapshot) error
	GetForTraining(ctx context.Context, window time.Duration) ([]*profile.Snapshot, error)
	Prune(ctx context.Context, retention time.Duration) error
	Close() error
}

// SQLite implements Store on a local SQLite database.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(databasePath string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", databasePath)
	if err != nil {
		return nil, fmt.Errorf("open snapshot database: %w", err)
	}
	// A single writer keeps SQLite happy under the analysis plane's
	// batched inserts.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS behavioral_snapshots (
			id INTEGER PRIMARY KEY,
			observed_at TEXT NOT NULL,
			client_addr TEXT NOT NULL,
			query_count REAL NOT NULL,
			total_query_bytes REAL NOT NULL,
			nxdomain_ratio REAL NOT NULL,
			error_ratio REAL NOT NULL,
			avg_ttl REAL NOT NULL,
			avg_domain_entropy REAL NOT NULL,
			max_domain_entropy REAL NOT NULL,
			unique_tld_count REAL NOT NULL,
			unique_qtype_ratio REAL NOT NULL,
			avg_rtt REAL NOT NULL,
			tcp_ratio REAL NOT NULL,
			avg_udp_payload_size REAL NOT NULL,
			dnssec_ok_ratio REAL NOT NULL,
			numeric_ratio REAL NOT NULL,
			non_alphanumeric_ratio REAL NOT NULL,
			avg_answer_size REAL NOT NULL,
			max_cname_chain_length REAL NOT NULL,
			avg_query_iat REAL NOT NULL,
			stdev_query_iat REAL NOT NULL
		);
		CREATE INDEX IF NOT EXISTS ix_behavioral_snapshots_observed_at
			ON behavioral_snapshots (observed_at);
	`)
	if err != nil {
		return fmt.Errorf("initialize snapshot schema: %w", err)
	}
	return nil
}

// Save writes one analysis batch inside a single transaction.
func (s *SQLite) Save(ctx context.Context, snaps []*profile.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO behavioral_snapshots (
			observed_at, client_addr, query_count, total_query_bytes,
			nxdomain_ratio, error_ratio, avg_ttl, avg_domain_entropy,
			max_domain_entropy, unique_tld_count, unique_qtype_ratio,
			avg_rtt, tcp_ratio, avg_udp_payload_size, dnssec_ok_ratio,
			numeric_ratio, non_alphanumeric_ratio, avg_answer_size,
			max_cname_chain_length, avg_query_iat, stdev_query_iat
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, snap := range snaps {
		_, err := stmt.ExecContext(ctx,
			snap.Timestamp.UTC().Format(time.RFC3339Nano), snap.ClientAddr,
			snap.QueryCount, snap.TotalQueryBytes,
			snap.NxDomainRatio, snap.ErrorRatio, snap.AvgTTL, snap.AvgDomainEntropy,
			snap.MaxDomainEntropy, snap.UniqueTLDCount, snap.UniqueQTypeRatio,
			snap.AvgRTT, snap.TCPRatio, snap.AvgUDPPayloadSize, snap.DNSSECOKRatio,
			snap.NumericRatio, snap.NonAlphanumericRatio, snap.AvgAnswerSize,
			snap.MaxCNAMEChainLength, snap.AvgQueryIAT, snap.StdevQueryIAT,
		)
		if err != nil {
			return fmt.Errorf("insert snapshot for %s: %w", snap.ClientAddr, err)
		}
	}
	return tx.Commit()
}

// GetForTraining returns every snapshot observed within the given window.
func (s *SQLite) GetForTraining(ctx context.Context, window time.Duration) ([]*profile.Snapshot, error) {
	since := time.Now().UTC().Add(-window).Format(time.RFC3339Nano)

	rows, err := s.db.QueryContext(ctx, `
		SELECT observed_at, client_addr, query_count, total_query_bytes,
			nxdomain_ratio, error_ratio, avg_ttl, avg_domain_entropy,
			max_domain_entropy, unique_tld_count, unique_qtype_ratio,
			avg_rtt, tcp_ratio, avg_udp_payload_size, dnssec_ok_ratio,
			numeric_ratio, non_alphanumeric_ratio, avg_answer_size,
			max_cname_chain_length, avg_query_iat, stdev_query_iat
		FROM behavioral_snapshots
		WHERE observed_at >= ?`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*profile.Snapshot
	for rows.Next() {
		var snap profile.Snapshot
		var observedAt string
		err := rows.Scan(
			&observedAt, &snap.ClientAddr, &snap.QueryCount, &snap.TotalQueryBytes,
			&snap.NxDomainRatio, &snap.ErrorRatio, &snap.AvgTTL, &snap.AvgDomainEntropy,
			&snap.MaxDomainEntropy, &snap.UniqueTLDCount, &snap.UniqueQTypeRatio,
			&snap.AvgRTT, &snap.TCPRatio, &snap.AvgUDPPayloadSize, &snap.DNSSECOKRatio,
			&snap.NumericRatio, &snap.NonAlphanumericRatio, &snap.AvgAnswerSize,
			&snap.MaxCNAMEChainLength, &snap.AvgQueryIAT, &snap.StdevQueryIAT,
		)
		if err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, observedAt); err == nil {
			snap.Timestamp = ts
		}
		out = append(out, &snap)
	}
	return out, rows.Err()
}

// Prune deletes snapshots older than the retention window.
func (s *SQLite) Prune(ctx context.Context, retention time.Duration) error {
	before := time.Now().UTC().Add(-retention).Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM behavioral_snapshots WHERE observed_at < ?`, before)
	return err
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
