package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// JSONB represents a PostgreSQL jsonb column holding an object
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into JSONB", value)
	}

	return json.Unmarshal(bytes, j)
}

// JSONBArray represents a jsonb column holding an array
type JSONBArray []interface{}

func (a JSONBArray) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

func (a *JSONBArray) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into JSONBArray", value)
	}

	return json.Unmarshal(bytes, a)
}

// CaseRow is one support case
type CaseRow struct {
	ID            uuid.UUID  `db:"id"`
	CustomerEmail string     `db:"customer_email"`
	Subject       string     `db:"subject"`
	Status        string     `db:"status"`
	Stage         *string    `db:"stage"`
	Summary       *string    `db:"summary"`
	Metadata      JSONB      `db:"metadata"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
	ClosedAt      *time.Time `db:"closed_at"`
}

// Message directions
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// MessageRow is one email attached to a case
type MessageRow struct {
	ID        uuid.UUID `db:"id"`
	CaseID    uuid.UUID `db:"case_id"`
	Direction string    `db:"direction"`
	FromAddr  string    `db:"from_addr"`
	ToAddr    string    `db:"to_addr"`
	Subject   string    `db:"subject"`
	Body      string    `db:"body"`
	CreatedAt time.Time `db:"created_at"`
}

// ExtractionRow stores the structured output of one extraction pass
type ExtractionRow struct {
	ID         uuid.UUID  `db:"id"`
	CaseID     uuid.UUID  `db:"case_id"`
	MessageID  *uuid.UUID `db:"message_id"`
	Intents    JSONBArray `db:"intents"`
	Entities   JSONB      `db:"entities"`
	Confidence float64    `db:"confidence"`
	CreatedAt  time.Time  `db:"created_at"`
}

// AuthSessionRow is the identity-verification state of a case
type AuthSessionRow struct {
	CaseID         uuid.UUID      `db:"case_id"`
	Status         string         `db:"status"`
	ErrorType      string         `db:"error_type"`
	RequiredFields pq.StringArray `db:"required_fields"`
	MissingFields  pq.StringArray `db:"missing_fields"`
	Provided       JSONB          `db:"provided"`
	Attempts       int            `db:"attempts"`
	CustomerID     *string        `db:"customer_id"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

// ActionRow is one planned or executed case action
type ActionRow struct {
	ID           uuid.UUID `db:"id"`
	CaseID       uuid.UUID `db:"case_id"`
	ActionType   string    `db:"action_type"`
	Status       string    `db:"status"`
	SourceIntent string    `db:"source_intent"`
	Entities     JSONB     `db:"entities"`
	Result       JSONB     `db:"result"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// DraftRow is a reply draft for a case, at most one row per (case, type)
type DraftRow struct {
	ID        uuid.UUID  `db:"id"`
	CaseID    uuid.UUID  `db:"case_id"`
	DraftType string     `db:"draft_type"`
	Subject   string     `db:"subject"`
	Body      string     `db:"body"`
	Summary   string     `db:"summary"`
	Actions   JSONBArray `db:"actions"`
	Version   int        `db:"version"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}

// ReviewRow records a human decision on a case, usually tied to the
// draft under review. DraftID is nil for draftless reviews.
type ReviewRow struct {
	ID        uuid.UUID  `db:"id"`
	CaseID    uuid.UUID  `db:"case_id"`
	DraftID   *uuid.UUID `db:"draft_id"`
	Decision  string     `db:"decision"`
	Reviewer  string     `db:"reviewer"`
	Comment   string     `db:"comment"`
	DecidedAt *time.Time `db:"decided_at"`
	CreatedAt time.Time  `db:"created_at"`
}

// ContractRow is a hashed customer record used for identity verification.
// Only field hashes are stored, never the raw values.
type ContractRow struct {
	ContractHash string    `db:"contract_hash"`
	PostalHash   string    `db:"postal_hash"`
	BirthdayHash string    `db:"birthday_hash"`
	CustomerID   string    `db:"customer_id"`
	Email        string    `db:"email"`
	CreatedAt    time.Time `db:"created_at"`
}
