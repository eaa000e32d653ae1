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

// Amount columns are NUMERIC(78,0); they are cast to text so they scan into
// strings without precision loss.
const fundraiserColumns = `
	id, on_chain_id, chain_id, contract_address, owner_user_id,
	name, goal::text, raised::text, donation_count, deadline, tx_hash,
	created_at, updated_at
`

// FundraiserRepository handles fundraiser data persistence
type FundraiserRepository struct {
	db *PostgresDB
}

// NewFundraiserRepository creates a new fundraiser repository
func NewFundraiserRepository(db *PostgresDB) *FundraiserRepository {
	return &FundraiserRepository{db: db}
}

// Create inserts a fundraiser record. The (chain_id, tx_hash) pair is unique;
// a second insert for the same creation transaction fails with a unique
// violation that callers translate into a duplicate outcome.
func (r *FundraiserRepository) Create(ctx context.Context, fundraiser *models.Fundraiser) error {
	if fundraiser.ID == "" {
		fundraiser.ID = uuid.NewString()
	}
	fundraiser.ContractAddress = strings.ToLower(fundraiser.ContractAddress)
	fundraiser.TxHash = strings.ToLower(fundraiser.TxHash)
	if fundraiser.Raised == "" {
		fundraiser.Raised = "0"
	}

	now := time.Now().UTC()
	fundraiser.CreatedAt = now
	fundraiser.UpdatedAt = now

	query := `
		INSERT INTO fundraisers (
			id, on_chain_id, chain_id, contract_address, owner_user_id,
			name, goal, raised, donation_count, deadline, tx_hash,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		fundraiser.ID,
		fundraiser.OnChainID,
		fundraiser.ChainID,
		fundraiser.ContractAddress,
		fundraiser.OwnerUserID,
		fundraiser.Name,
		fundraiser.Goal,
		fundraiser.Raised,
		fundraiser.DonationCount,
		fundraiser.Deadline,
		fundraiser.TxHash,
		fundraiser.CreatedAt,
		fundraiser.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("failed to create fundraiser: %w", err)
	}
	return nil
}

// GetByID retrieves a fundraiser by id
func (r *FundraiserRepository) GetByID(ctx context.Context, id string) (*models.Fundraiser, error) {
	query := `SELECT ` + fundraiserColumns + ` FROM fundraisers WHERE id = $1`
	return r.scanOne(r.db.Pool().QueryRow(ctx, query, id))
}

// GetByTxHash retrieves a fundraiser by its creation transaction hash
func (r *FundraiserRepository) GetByTxHash(ctx context.Context, chainID types.ChainID, txHash string) (*models.Fundraiser, error) {
	query := `SELECT ` + fundraiserColumns + ` FROM fundraisers WHERE chain_id = $1 AND tx_hash = $2`
	return r.scanOne(r.db.Pool().QueryRow(ctx, query, chainID, strings.ToLower(txHash)))
}

// GetByOnChainID retrieves a fundraiser by its on-chain identifier
func (r *FundraiserRepository) GetByOnChainID(ctx context.Context, chainID types.ChainID, onChainID int64) (*models.Fundraiser, error) {
	query := `SELECT ` + fundraiserColumns + ` FROM fundraisers WHERE chain_id = $1 AND on_chain_id = $2`
	return r.scanOne(r.db.Pool().QueryRow(ctx, query, chainID, onChainID))
}

// GetByContractAddress retrieves a fundraiser by its deployed contract address
func (r *FundraiserRepository) GetByContractAddress(ctx context.Context, chainID types.ChainID, address string) (*models.Fundraiser, error) {
	query := `SELECT ` + fundraiserColumns + ` FROM fundraisers WHERE chain_id = $1 AND contract_address = $2`
	return r.scanOne(r.db.Pool().QueryRow(ctx, query, chainID, strings.ToLower(address)))
}

// UpdateRaised overwrites the raised total and donation count, used when
// reconciling against live contract state.
func (r *FundraiserRepository) UpdateRaised(ctx context.Context, id, raised string, donationCount int64) error {
	query := `
		UPDATE fundraisers
		SET raised = $2, donation_count = $3, updated_at = $4
		WHERE id = $1
	`
	tag, err := r.db.Pool().Exec(ctx, query, id, raised, donationCount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update fundraiser totals: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *FundraiserRepository) scanOne(row pgx.Row) (*models.Fundraiser, error) {
	var f models.Fundraiser
	err := row.Scan(
		&f.ID,
		&f.OnChainID,
		&f.ChainID,
		&f.ContractAddress,
		&f.OwnerUserID,
		&f.Name,
		&f.Goal,
		&f.Raised,
		&f.DonationCount,
		&f.Deadline,
		&f.TxHash,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get fundraiser: %w", err)
	}
	return &f, nil
}
