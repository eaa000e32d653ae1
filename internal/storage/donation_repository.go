package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fundchain-core/internal/models"
	"github.com/fundchain-core/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const donationColumns = `
	id, fundraiser_id, user_id, donor_address, amount::text,
	tx_hash, chain_id, block_number, created_at
`

// DonationRepository handles donation data persistence
type DonationRepository struct {
	db *PostgresDB
}

// NewDonationRepository creates a new donation repository
func NewDonationRepository(db *PostgresDB) *DonationRepository {
	return &DonationRepository{db: db}
}

// CreateWithAggregates inserts a donation and bumps the parent fundraiser's
// raised total and donation count in one transaction. The unique (chain_id,
// tx_hash) constraint on donations is the idempotency barrier: concurrent
// ingestion of the same hash commits exactly one row and one aggregate bump,
// the rest fail with a unique violation.
func (r *DonationRepository) CreateWithAggregates(ctx context.Context, donation *models.Donation) error {
	if donation.ID == "" {
		donation.ID = uuid.NewString()
	}
	donation.DonorAddress = strings.ToLower(donation.DonorAddress)
	donation.TxHash = strings.ToLower(donation.TxHash)
	donation.CreatedAt = time.Now().UTC()

	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // nolint:errcheck // no-op after commit
	}()

	insert := `
		INSERT INTO donations (
			id, fundraiser_id, user_id, donor_address, amount,
			tx_hash, chain_id, block_number, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = tx.Exec(ctx, insert,
		donation.ID,
		donation.FundraiserID,
		donation.UserID,
		donation.DonorAddress,
		donation.Amount,
		donation.TxHash,
		donation.ChainID,
		donation.BlockNumber,
		donation.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("failed to create donation: %w", err)
	}

	update := `
		UPDATE fundraisers
		SET raised = raised + $2::numeric,
			donation_count = donation_count + 1,
			updated_at = $3
		WHERE id = $1
	`
	tag, err := tx.Exec(ctx, update, donation.FundraiserID, donation.Amount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update fundraiser aggregates: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit donation: %w", err)
	}
	return nil
}

// GetByTxHash retrieves a donation by transaction hash
func (r *DonationRepository) GetByTxHash(ctx context.Context, chainID types.ChainID, txHash string) (*models.Donation, error) {
	query := `SELECT ` + donationColumns + ` FROM donations WHERE chain_id = $1 AND tx_hash = $2`
	return r.scanOne(r.db.Pool().QueryRow(ctx, query, chainID, strings.ToLower(txHash)))
}

// ListByFundraiser retrieves donations for a fundraiser, newest first
func (r *DonationRepository) ListByFundraiser(ctx context.Context, fundraiserID string, limit int) ([]*models.Donation, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `
		SELECT ` + donationColumns + `
		FROM donations
		WHERE fundraiser_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Pool().Query(ctx, query, fundraiserID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list donations: %w", err)
	}
	defer rows.Close()

	var donations []*models.Donation
	for rows.Next() {
		var d models.Donation
		if err := rows.Scan(
			&d.ID,
			&d.FundraiserID,
			&d.UserID,
			&d.DonorAddress,
			&d.Amount,
			&d.TxHash,
			&d.ChainID,
			&d.BlockNumber,
			&d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan donation: %w", err)
		}
		donations = append(donations, &d)
	}
	return donations, rows.Err()
}

func (r *DonationRepository) scanOne(row pgx.Row) (*models.Donation, error) {
	var d models.Donation
	err := row.Scan(
		&d.ID,
		&d.FundraiserID,
		&d.UserID,
		&d.DonorAddress,
		&d.Amount,
		&d.TxHash,
		&d.ChainID,
		&d.BlockNumber,
		&d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get donation: %w", err)
	}
	return &d, nil
}
