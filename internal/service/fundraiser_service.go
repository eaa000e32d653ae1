package service

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fundchain-core/internal/config"
	"github.com/fundchain-core/internal/contracts"
	apperrors "github.com/fundchain-core/internal/errors"
	"github.com/fundchain-core/internal/events"
	"github.com/fundchain-core/internal/logging"
	"github.com/fundchain-core/internal/models"
	"github.com/fundchain-core/internal/storage"
	"github.com/fundchain-core/internal/types"
)

// FundraiserService creates fundraisers through the factory contract and
// ingests creation transactions submitted by external wallets.
type FundraiserService struct {
	chains      ChainProvider
	registry    ContractProvider
	exec        *contracts.Executor
	verifier    TxVerifier
	extractor   *events.Extractor
	users       UserStore
	fundraisers FundraiserStore
	cache       LiveCache
	logger      *logging.Logger
}

// NewFundraiserService creates a fundraiser service. cache may be nil.
func NewFundraiserService(
	chains ChainProvider,
	registry ContractProvider,
	exec *contracts.Executor,
	txVerifier TxVerifier,
	extractor *events.Extractor,
	users UserStore,
	fundraisers FundraiserStore,
	cache LiveCache,
	logger *logging.Logger,
) *FundraiserService {
	return &FundraiserService{
		chains:      chains,
		registry:    registry,
		exec:        exec,
		verifier:    txVerifier,
		extractor:   extractor,
		users:       users,
		fundraisers: fundraisers,
		cache:       cache,
		logger:      logger,
	}
}

// CreateFundraiserInput describes a fundraiser to deploy through the factory.
type CreateFundraiserInput struct {
	ChainID  types.ChainID
	Name     string
	Goal     *big.Int
	Deadline time.Time
}

// CreateFundraiserOnChain submits a factory creation transaction, waits out
// the chain's confirmation depth and persists the resulting fundraiser.
func (s *FundraiserService) CreateFundraiserOnChain(ctx context.Context, input CreateFundraiserInput) (*models.Fundraiser, error) {
	chainID := s.chains.ResolveChain(input.ChainID)

	factory, err := s.registry.ContractWithSigner(config.ContractFundraiserFactory, chainID)
	if err != nil {
		return nil, err
	}

	tx, err := factory.Transact(ctx, contracts.MethodCreateFundraiser,
		input.Name, input.Goal, big.NewInt(input.Deadline.Unix()))
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeChainUnavailable) {
			return nil, err
		}
		return nil, apperrors.NewInternalError("failed to submit fundraiser creation", err)
	}

	logger := s.logger.WithChain(int64(chainID)).WithField("txHash", tx.Hash().Hex())
	logger.Info("Fundraiser creation submitted")

	receipt, err := s.exec.WaitForConfirmation(ctx, factory.Backend(), tx.Hash(), s.chains.ConfirmationsFor(chainID))
	if err != nil {
		return nil, err
	}

	event := s.extractor.ExtractFundraiserCreated(receipt.Logs)
	if event == nil {
		return nil, apperrors.NewEventNotFoundError(tx.Hash().Hex(), "FundraiserCreated")
	}

	fundraiser, _, err := s.persistFromEvent(ctx, chainID, event)
	return fundraiser, err
}

// RecordFundraiserFromTransaction ingests a creation transaction submitted by
// an external wallet. The returned bool is false when the hash was already
// recorded.
func (s *FundraiserService) RecordFundraiserFromTransaction(ctx context.Context, chainID types.ChainID, txHash string) (*models.Fundraiser, bool, error) {
	chainID = s.chains.ResolveChain(chainID)
	txHash = strings.ToLower(txHash)

	if existing, err := s.fundraisers.GetByTxHash(ctx, chainID, txHash); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, apperrors.NewInternalError("failed to check for existing fundraiser", err)
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

	event := s.extractor.ExtractFundraiserCreated(result.Receipt.Logs)
	if event == nil {
		return nil, false, apperrors.NewEventNotFoundError(txHash, "FundraiserCreated")
	}

	return s.persistFromEvent(ctx, chainID, event)
}

// persistFromEvent materializes a fundraiser record from its creation event.
// A unique violation means another request persisted it first; the existing
// record wins and the created flag reports false.
func (s *FundraiserService) persistFromEvent(ctx context.Context, chainID types.ChainID, event *events.FundraiserCreated) (*models.Fundraiser, bool, error) {
	owner, err := s.users.FindOrCreateByWallet(ctx, event.Owner.Hex())
	if err != nil {
		return nil, false, apperrors.NewInternalError("failed to resolve owner user", err)
	}

	fundraiser := &models.Fundraiser{
		OnChainID:       event.OnChainID.Int64(),
		ChainID:         chainID,
		ContractAddress: strings.ToLower(event.FundraiserAddress.Hex()),
		OwnerUserID:     owner.ID,
		Name:            event.Name,
		Goal:            bigOrZero(event.Goal),
		Raised:          "0",
		Deadline:        time.Unix(deadlineOrZero(event.Deadline), 0).UTC(),
		TxHash:          strings.ToLower(event.TxHash),
	}

	if err := s.fundraisers.Create(ctx, fundraiser); err != nil {
		if storage.IsUniqueViolation(err) {
			existing, getErr := s.fundraisers.GetByTxHash(ctx, chainID, fundraiser.TxHash)
			if errors.Is(getErr, storage.ErrNotFound) {
				// The violation came from the (chain, on-chain id) constraint:
				// the same creation is already recorded under another hash.
				existing, getErr = s.fundraisers.GetByOnChainID(ctx, chainID, fundraiser.OnChainID)
			}
			if errors.Is(getErr, storage.ErrNotFound) {
				return nil, false, apperrors.NewDuplicateTransactionError(fundraiser.TxHash)
			}
			if getErr != nil {
				return nil, false, apperrors.NewInternalError("failed to load concurrently recorded fundraiser", getErr)
			}
			return existing, false, nil
		}
		return nil, false, apperrors.NewInternalError("failed to record fundraiser", err)
	}

	s.logger.WithChain(int64(chainID)).WithFields(map[string]interface{}{
		"fundraiserId": fundraiser.ID,
		"onChainId":    fundraiser.OnChainID,
		"contract":     fundraiser.ContractAddress,
	}).Info("Fundraiser recorded")

	return fundraiser, true, nil
}

// GetLiveFundraiserData reads the fundraiser contract's current state, with a
// short-TTL cache in front of the chain.
func (s *FundraiserService) GetLiveFundraiserData(ctx context.Context, chainID types.ChainID, contractAddress string) (*models.LiveFundraiserData, error) {
	chainID = s.chains.ResolveChain(chainID)
	address := common.HexToAddress(contractAddress)

	var cacheKey string
	if s.cache != nil {
		cacheKey = s.cache.GenerateFundraiserKey(chainID, address.Hex())
		var cached models.LiveFundraiserData
		if hit, cacheErr := s.cache.Get(ctx, cacheKey, &cached); cacheErr == nil && hit {
			return &cached, nil
		}
	}

	handle, err := s.registry.Bind(config.ContractFundraiser, chainID, address)
	if err != nil {
		return nil, err
	}

	reads := map[string]*string{}
	data := &models.LiveFundraiserData{
		ContractAddress: strings.ToLower(address.Hex()),
		ChainID:         chainID,
		FetchedAt:       time.Now().UTC(),
	}

	var deadline, donationCount string
	reads[contracts.MethodTotalRaised] = &data.TotalRaised
	reads[contracts.MethodGoal] = &data.Goal
	reads[contracts.MethodDeadline] = &deadline
	reads[contracts.MethodDonationCount] = &donationCount

	for method, dest := range reads {
		value, readErr := s.readBig(ctx, handle, method)
		if readErr != nil {
			return nil, readErr
		}
		*dest = value
	}

	data.Deadline = parseInt64(deadline)
	data.DonationCount = parseInt64(donationCount)

	if s.cache != nil {
		if cacheErr := s.cache.Set(ctx, cacheKey, data); cacheErr != nil {
			s.logger.WithError(cacheErr).Warn("Failed to cache fundraiser data")
		}
	}
	return data, nil
}

// SyncFundraiserFromChain reconciles the stored raised total and donation
// count against the live contract state.
func (s *FundraiserService) SyncFundraiserFromChain(ctx context.Context, fundraiserID string) (*models.Fundraiser, error) {
	fundraiser, err := s.fundraisers.GetByID(ctx, fundraiserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NewRecordNotFoundError("fundraiser", fundraiserID)
		}
		return nil, apperrors.NewInternalError("failed to load fundraiser", err)
	}

	live, err := s.GetLiveFundraiserData(ctx, fundraiser.ChainID, fundraiser.ContractAddress)
	if err != nil {
		return nil, err
	}

	if live.TotalRaised == fundraiser.Raised && live.DonationCount == fundraiser.DonationCount {
		return fundraiser, nil
	}

	if err := s.fundraisers.UpdateRaised(ctx, fundraiser.ID, live.TotalRaised, live.DonationCount); err != nil {
		return nil, apperrors.NewInternalError("failed to reconcile fundraiser totals", err)
	}

	refreshed, err := s.fundraisers.GetByID(ctx, fundraiser.ID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to reload fundraiser", err)
	}
	return refreshed, nil
}

func (s *FundraiserService) readBig(ctx context.Context, handle *contracts.Handle, method string) (string, error) {
	var out string
	err := s.exec.Call(ctx, handle.Name+"."+method, func(ctx context.Context) error {
		value, callErr := handle.CallBig(ctx, method)
		if callErr != nil {
			return callErr
		}
		out = value.String()
		return nil
	})
	return out, err
}

func bigOrZero(value *big.Int) string {
	if value == nil {
		return "0"
	}
	return value.String()
}

func deadlineOrZero(value *big.Int) int64 {
	if value == nil {
		return 0
	}
	return value.Int64()
}

func parseInt64(value string) int64 {
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return 0
	}
	return parsed.Int64()
}
