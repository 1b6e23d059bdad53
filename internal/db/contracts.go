package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// VerifyIdentity matches provided field hashes against the contract
// records. An empty postal or birthday hash means the field was not
// required for this case and is skipped. Returns the customer id on a
// full match, or empty string on mismatch or unknown contract.
func (c *Client) VerifyIdentity(ctx context.Context, contractHash, postalHash, birthdayHash string) (string, error) {
	var row ContractRow
	err := c.db.GetContext(ctx, &row, `
		SELECT * FROM contracts WHERE contract_hash = $1`, contractHash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up contract: %w", err)
	}

	if postalHash != "" && postalHash != row.PostalHash {
		return "", nil
	}
	if birthdayHash != "" && birthdayHash != row.BirthdayHash {
		return "", nil
	}
	return row.CustomerID, nil
}

type contractSeedFile struct {
	Contracts []struct {
		ContractHash string `yaml:"contract_hash"`
		PostalHash   string `yaml:"postal_hash"`
		BirthdayHash string `yaml:"birthday_hash"`
		CustomerID   string `yaml:"customer_id"`
		Email        string `yaml:"email"`
	} `yaml:"contracts"`
}

// LoadContractSeed parses a YAML file of pre-hashed contract records.
func LoadContractSeed(path string) ([]ContractRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read contract seed: %w", err)
	}

	var file contractSeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse contract seed: %w", err)
	}

	rows := make([]ContractRow, 0, len(file.Contracts))
	for _, rec := range file.Contracts {
		if rec.ContractHash == "" || rec.CustomerID == "" {
			return nil, fmt.Errorf("contract seed entry missing contract_hash or customer_id")
		}
		rows = append(rows, ContractRow{
			ContractHash: rec.ContractHash,
			PostalHash:   rec.PostalHash,
			BirthdayHash: rec.BirthdayHash,
			CustomerID:   rec.CustomerID,
			Email:        rec.Email,
		})
	}
	return rows, nil
}

// UpsertContracts loads contract records, replacing records that share a
// contract hash.
func (c *Client) UpsertContracts(ctx context.Context, rows []ContractRow) error {
	now := time.Now().UTC()
	for _, row := range rows {
		_, err := c.db.ExecContext(ctx, `
			INSERT INTO contracts (contract_hash, postal_hash, birthday_hash, customer_id, email, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (contract_hash) DO UPDATE SET
				postal_hash = EXCLUDED.postal_hash,
				birthday_hash = EXCLUDED.birthday_hash,
				customer_id = EXCLUDED.customer_id,
				email = EXCLUDED.email`,
			row.ContractHash, row.PostalHash, row.BirthdayHash, row.CustomerID, row.Email, now,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert contract for %s: %w", row.CustomerID, err)
		}
	}
	return nil
}
