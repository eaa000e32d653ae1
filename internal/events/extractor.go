// Package events decodes receipt logs into typed domain events.
package events

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/fundchain-core/internal/logging"
)

// ParsedEvent is one decoded log entry. Fields holds both indexed and
// non-indexed inputs keyed by their ABI names.
type ParsedEvent struct {
	Name        string
	Fields      map[string]interface{}
	Address     string
	BlockNumber uint64
	TxHash      string
}

// Extractor decodes logs against known contract interfaces.
type Extractor struct {
	logger *logging.Logger
}

// NewExtractor creates a log extractor.
func NewExtractor(logger *logging.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Parse decodes every log that matches an event of the given interface.
// Logs emitted by other contracts in the same transaction are skipped
// silently; logs that match a known signature but fail to decode are skipped
// with a warning, never surfaced as errors.
func (e *Extractor) Parse(logs []*ethtypes.Log, contractABI abi.ABI) []ParsedEvent {
	var parsed []ParsedEvent

	for _, entry := range logs {
		if len(entry.Topics) == 0 {
			continue
		}

		event, err := contractABI.EventByID(entry.Topics[0])
		if err != nil {
			// Foreign event signature, not ours.
			continue
		}

		fields := make(map[string]interface{})

		if len(entry.Data) > 0 {
			if err := contractABI.UnpackIntoMap(fields, event.Name, entry.Data); err != nil {
				e.logger.WithFields(map[string]interface{}{
					"event":  event.Name,
					"txHash": entry.TxHash.Hex(),
					"error":  err.Error(),
				}).Warn("Skipping undecodable event data")
				continue
			}
		}

		var indexed abi.Arguments
		for _, input := range event.Inputs {
			if input.Indexed {
				indexed = append(indexed, input)
			}
		}
		if len(indexed) > 0 {
			if err := abi.ParseTopicsIntoMap(fields, indexed, entry.Topics[1:]); err != nil {
				e.logger.WithFields(map[string]interface{}{
					"event":  event.Name,
					"txHash": entry.TxHash.Hex(),
					"error":  err.Error(),
				}).Warn("Skipping undecodable event topics")
				continue
			}
		}

		parsed = append(parsed, ParsedEvent{
			Name:        event.Name,
			Fields:      fields,
			Address:     entry.Address.Hex(),
			BlockNumber: entry.BlockNumber,
			TxHash:      entry.TxHash.Hex(),
		})
	}

	return parsed
}

// First returns the first parsed event with the given name, or nil.
func First(parsed []ParsedEvent, name string) *ParsedEvent {
	for i := range parsed {
		if parsed[i].Name == name {
			return &parsed[i]
		}
	}
	return nil
}
