package service

import (
	"context"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	apperrors "github.com/fundchain-core/internal/errors"
	"github.com/fundchain-core/internal/events"
	"github.com/fundchain-core/internal/logging"
	"github.com/fundchain-core/internal/models"
	"github.com/fundchain-core/internal/storage"
	"github.com/fundchain-core/internal/types"
)

// DonationService ingests verified donation transactions. Every amount is
// taken from the decoded event, never from client input.
type DonationService struct {
	chains      ChainProvider
	verifier    TxVerifier
	extractor   *events.Extractor
	users       UserStore
	fundraisers FundraiserStore
	donations   DonationStore
	logger      *logging.Logger
}

// NewDonationService creates a donation ingestion service
func NewDonationService(
	chains ChainProvider,
	txVerifier TxVerifier,
	extractor *events.Extractor,
	users UserStore,
	fundraisers FundraiserStore,
	donations DonationStore,
	logger *logging.Logger,
) *DonationService {
	return &DonationService{
		chains:      chains,
		verifier:    txVerifier,
		extractor:   extractor,
		users:       users,
		fundraisers: fundraisers,
		donations:   donations,
		logger:      logger,
	}
}

// RecordDonationInput identifies a donation transaction to ingest.
type RecordDonationInput struct {
	FundraiserID string
	TxHash       string
	ChainID      types.ChainID
}

// RecordDonationFromTransaction verifies a donation transaction against the
// chain and persists it. The returned bool is false when the transaction was
// already recorded; the existing record is returned unchanged. Concurrent
// calls for the same hash converge on exactly one record.
func (s *DonationService) RecordDonationFromTransaction(ctx context.Context, input RecordDonationInput) (*models.Donation, bool, error) {
	chainID := s.chains.ResolveChain(input.ChainID)
	txHash := strings.ToLower(input.TxHash)

	logger := s.logger.WithChain(int64(chainID)).WithField("txHash", txHash)

	fundraiser, err := s.fundraisers.GetByID(ctx, input.FundraiserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, false, apperrors.NewRecordNotFoundError("fundraiser", input.FundraiserID)
		}
		return nil, false, apperrors.NewInternalError("failed to load fundraiser", err)
	}

	// Fast path: already ingested.
	if existing, err := s.donations.GetByTxHash(ctx, chainID, txHash); err == nil {
		logger.Debug("Donation already recorded, returning existing record")
		return existing, false, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, apperrors.NewInternalError("failed to check for existing donation", err)
	}

	backend, err := s.chains.GetConnection(chainID)
	if err != nil {
		return nil, false, err
	}

	result, err := s.verifier.Verify(ctx, backend, common.HexToHash(txHash))
	if err != nil {
		return nil, false, err
	}
	if err := requireSuccessfulTx(result, txHash); err != nil {
		return nil, false, err
	}

	event := s.extractor.ExtractDonationReceived(result.Receipt.Logs)
	if event == nil {
		return nil, false, apperrors.NewEventNotFoundError(txHash, "DonationReceived")
	}

	// The event must belong to the fundraiser the caller named. Donations to
	// other contracts in the same transaction are not silently reassigned.
	eventContract := strings.ToLower(event.Contract.Hex())
	if eventContract != fundraiser.ContractAddress {
		return nil, false, apperrors.NewEntityMismatchError("contract address", fundraiser.ContractAddress, eventContract)
	}
	if event.OnChainID.Int64() != fundraiser.OnChainID {
		return nil, false, apperrors.NewEntityMismatchError("fundraiser id", fundraiser.OnChainID, event.OnChainID.Int64())
	}

	user, err := s.users.FindOrCreateByWallet(ctx, event.Donor.Hex())
	if err != nil {
		return nil, false, apperrors.NewInternalError("failed to resolve donor user", err)
	}

	donation := &models.Donation{
		FundraiserID: fundraiser.ID,
		UserID:       user.ID,
		DonorAddress: strings.ToLower(event.Donor.Hex()),
		Amount:       event.Amount.String(),
		TxHash:       txHash,
		ChainID:      chainID,
		BlockNumber:  event.BlockNumber,
	}

	if err := s.donations.CreateWithAggregates(ctx, donation); err != nil {
		if storage.IsUniqueViolation(err) {
			// Lost the race: another request committed this hash first.
			existing, getErr := s.donations.GetByTxHash(ctx, chainID, txHash)
			if errors.Is(getErr, storage.ErrNotFound) {
				// The winning row is not visible yet; tell the caller the
				// hash is taken rather than claiming an internal fault.
				return nil, false, apperrors.NewDuplicateTransactionError(txHash)
			}
			if getErr != nil {
				return nil, false, apperrors.NewInternalError("failed to load concurrently recorded donation", getErr)
			}
			logger.Info("Donation recorded concurrently, returning existing record")
			return existing, false, nil
		}
		return nil, false, apperrors.NewInternalError("failed to record donation", err)
	}

	logger.WithFields(map[string]interface{}{
		"fundraiserId": fundraiser.ID,
		"amount":       donation.Amount,
		"donor":        donation.DonorAddress,
	}).Info("Donation recorded")

	return donation, true, nil
}

// GetDonationByTxHash returns a previously recorded donation.
func (s *DonationService) GetDonationByTxHash(ctx context.Context, chainID types.ChainID, txHash string) (*models.Donation, error) {
	chainID = s.chains.ResolveChain(chainID)
	donation, err := s.donations.GetByTxHash(ctx, chainID, strings.ToLower(txHash))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NewRecordNotFoundError("donation", txHash)
		}
		return nil, apperrors.NewInternalError("failed to load donation", err)
	}
	return donation, nil
}
