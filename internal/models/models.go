// Package models defines the persisted mirror of the in-memory ledger: every
// committed mutation is written here so the service can serve queries and
// rebuild ledger state by replay on boot. Amounts are stored as decimal
// strings at the canonical 18-decimal scale.
package models

import (
	"time"

	"github.com/lib/pq"
)

// LedgerRole distinguishes home-ledger rows from gateway rows in shared
// tables.
type LedgerRole string

const (
	RoleHome    LedgerRole = "home"
	RoleGateway LedgerRole = "gateway"
)

// DepositKind distinguishes locally-initiated deposits from relayed ones.
type DepositKind string

const (
	DepositKindLocal  DepositKind = "local"
	DepositKindRemote DepositKind = "remote"
)

// VaultState is the aggregate state of one ledger role, one row per role so
// a combined home+gateway deployment never overwrites the other role's
// counters.
type VaultState struct {
	Role          LedgerRole `json:"role" gorm:"primaryKey;size:8"`
	Supply        string     `json:"supply" gorm:"not null;default:0"`
	Managed       string     `json:"managed" gorm:"not null;default:0"`
	HighWaterMark string     `json:"high_water_mark" gorm:"not null;default:0"`
	OpCounter     uint64     `json:"op_counter" gorm:"not null;default:0"`
	// DepositCounter is only advanced by the gateway row.
	DepositCounter uint64    `json:"deposit_counter" gorm:"not null;default:0"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Holder mirrors one holder's share balance, locked count and withdrawal
// nonce.
type Holder struct {
	Address   string    `json:"address" gorm:"primaryKey;size:42"`
	Balance   string    `json:"balance" gorm:"not null;default:0"`
	Locked    string    `json:"locked" gorm:"not null;default:0"`
	Nonce     uint64    `json:"nonce" gorm:"not null;default:0"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AllowedAsset is a deposit asset configuration entry.
type AllowedAsset struct {
	Asset     string    `json:"asset" gorm:"primaryKey;size:42"`
	Role      LedgerRole `json:"role" gorm:"primaryKey;size:8;default:home"`
	Decimals  uint8     `json:"decimals" gorm:"not null"`
	Allowed   bool      `json:"allowed" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DestinationEntry is a destination allowlist entry. Asset is empty for the
// network-level entry.
type DestinationEntry struct {
	NetworkID uint32    `json:"network_id" gorm:"primaryKey"`
	Asset     string    `json:"asset" gorm:"primaryKey;size:42;default:''"`
	Allowed   bool      `json:"allowed" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Deposit is a committed deposit, local or relayed.
type Deposit struct {
	ID            string      `json:"id" gorm:"primaryKey;size:66"` // deposit id hash
	Kind          DepositKind `json:"kind" gorm:"index;not null"`
	Role          LedgerRole  `json:"role" gorm:"index;not null;default:home"`
	Receiver      string      `json:"receiver" gorm:"index;size:42"`
	Asset         string      `json:"asset" gorm:"index;size:42"`
	OriginNetwork uint32      `json:"origin_network" gorm:"index"`
	OriginAccount string      `json:"origin_account" gorm:"index"`
	Amount        string      `json:"amount" gorm:"not null"` // normalized
	Shares        string      `json:"shares" gorm:"not null;default:0"`
	CreatedAt     time.Time   `json:"created_at"`
}

// WithdrawalRequest mirrors one request through its lifecycle.
type WithdrawalRequest struct {
	ID           string     `json:"id" gorm:"primaryKey;size:66"`
	Role         LedgerRole `json:"role" gorm:"index;not null;default:home"`
	Owner        string     `json:"owner" gorm:"index;size:42"`
	Receiver     string     `json:"receiver" gorm:"not null"` // hex payload
	DestNetwork  uint32     `json:"dest_network" gorm:"index;not null"`
	DestAsset    string     `json:"dest_asset" gorm:"size:42;not null"`
	Amount       string     `json:"amount" gorm:"not null"` // normalized
	LockedShares string     `json:"locked_shares" gorm:"not null;default:0"`
	Status       string     `json:"status" gorm:"index;not null"`
	Remote       bool       `json:"remote" gorm:"not null;default:false"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// PseudoIdentity is a registered origin-account mapping.
type PseudoIdentity struct {
	OriginHash    string    `json:"origin_hash" gorm:"primaryKey;size:66"`
	LocalAddress  string    `json:"local_address" gorm:"uniqueIndex;size:42;not null"`
	OriginNetwork uint32    `json:"origin_network" gorm:"index;not null"`
	OriginAccount string    `json:"origin_account" gorm:"not null"`
	CreatedAt     time.Time `json:"created_at"`
}

// ReplayKey is a consumed one-shot identifier. Namespace scopes the key to
// its semantic class (deposits, remote requests, operations); Role scopes it
// to one ledger, so a gateway deposit id never shadows the home-side record
// of the same hash.
type ReplayKey struct {
	Role      LedgerRole `json:"role" gorm:"primaryKey;size:8"`
	Namespace string     `json:"namespace" gorm:"primaryKey;size:16"`
	Key       string     `json:"key" gorm:"primaryKey;size:66"`
	CreatedAt time.Time  `json:"created_at"`
}

// Replay guard namespaces.
const (
	ReplayNamespaceDeposit   = "deposit"
	ReplayNamespaceRequest   = "request"
	ReplayNamespaceOperation = "operation"
)

// ExternalVault is a tracked yield sub-vault position with its cached
// underlying asset.
type ExternalVault struct {
	Vault      string     `json:"vault" gorm:"primaryKey;size:42"`
	Role       LedgerRole `json:"role" gorm:"primaryKey;size:8;default:home"`
	Underlying string     `json:"underlying" gorm:"size:42;not null"`
	Shares     string     `json:"shares" gorm:"not null;default:0"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// GatewayCustody is the gateway's normalized custody balance for one asset.
type GatewayCustody struct {
	Asset     string    `json:"asset" gorm:"primaryKey;size:42"`
	Balance   string    `json:"balance" gorm:"not null;default:0"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Event is one entry of the append-only audit log. Payload carries every
// field needed to reconstruct the ledger mutation by replay; Topics mirrors
// the indexed fields for filtered queries.
type Event struct {
	ID        string         `json:"id" gorm:"primaryKey;size:36"` // uuid
	Type      string         `json:"type" gorm:"index;not null"`
	Subject   string         `json:"subject" gorm:"index"` // primary entity id
	Topics    pq.StringArray `json:"topics" gorm:"type:text[]"`
	Payload   string         `json:"payload" gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `json:"created_at" gorm:"index"`
}

// Audit event types.
const (
	EventAssetAllowlisted      = "asset_allowlisted"
	EventDestinationAllowlisted = "destination_allowlisted"
	EventDepositRecorded       = "deposit_recorded"
	EventAccountRegistered     = "account_registered"
	EventWithdrawalRequested   = "withdrawal_requested"
	EventWithdrawalCompleted   = "withdrawal_completed"
	EventWithdrawalCanceled    = "withdrawal_canceled"
	EventFeeCollected          = "fee_collected"
	EventHighWaterMarkUpdated  = "high_water_mark_updated"
	EventLossReported          = "loss_reported"
	EventVaultCached           = "external_vault_cached"
	EventVaultAllocated        = "external_vault_allocated"
	EventVaultWithdrawn        = "external_vault_withdrawn"
	EventVaultRedeemed         = "external_vault_redeemed"
	EventOutboundTransfer      = "outbound_transfer_executed"
	EventSharesTransferred     = "shares_transferred"
	EventFeeConfigured         = "fee_configured"
	EventHighWaterMarkReset    = "high_water_mark_reset"
	EventLedgerPaused          = "ledger_paused"
	EventLedgerResumed         = "ledger_resumed"
)
