// Package airdrop prepares recipient lists for registerAirdrop, which accepts
// at most ledger.MaxAirdropRecipients identities per call.
package airdrop

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ParseRecipients converts string addresses into common.Address. Blank
// entries are skipped and duplicates are kept, since each one is a separate
// intended distribution.
func ParseRecipients(inputs []string) ([]common.Address, error) {
	recipients := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid recipient: %s", input)
		}
		recipients = append(recipients, common.HexToAddress(input))
	}
	return recipients, nil
}

// ReadRecipients parses one address per line. Lines starting with # are
// comments; a trailing ",..." column is ignored so CSV exports work.
func ReadRecipients(r io.Reader) ([]common.Address, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, ','); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if !common.IsHexAddress(line) {
			return nil, fmt.Errorf("invalid recipient on line %d: %s", n, line)
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read recipients: %w", err)
	}
	return ParseRecipients(lines)
}

// SplitRecipients splits recipients into consecutive batches of at most
// batchSize, preserving order.
func SplitRecipients(recipients []common.Address, batchSize int) ([][]common.Address, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	batches := make([][]common.Address, 0, (len(recipients)+batchSize-1)/batchSize)
	for start := 0; start < len(recipients); start += batchSize {
		end := start + batchSize
		if end > len(recipients) {
			end = len(recipients)
		}
		batches = append(batches, recipients[start:end:end])
	}
	return batches, nil
}
