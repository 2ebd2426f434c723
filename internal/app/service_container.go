package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"hako-backend/internal/clients"
	"hako-backend/internal/config"
	"hako-backend/internal/db"
	"hako-backend/internal/events"
	"hako-backend/internal/ledger"
	"hako-backend/internal/repository"
	"hako-backend/internal/services"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ServiceContainer wires the ledgers, their collaborators and the service
// layer together. Initialization order matters: collaborators first, then
// the cores, then state restore, then the pause switches are armed.
type ServiceContainer struct {
	DB     *gorm.DB
	Logger *logrus.Logger

	// Collaborators
	CustodianClient *clients.CustodianClient
	YieldClient     *clients.YieldVaultClient
	NATSClient      *clients.NATSClient
	Publisher       *events.Publisher

	// Cores
	HomeLedger    *ledger.Ledger
	GatewayLedger *ledger.GatewayLedger // nil unless the gateway role is enabled

	HomePause    *services.PauseSwitch
	GatewayPause *services.PauseSwitch

	// Services
	VaultService      *services.VaultService
	WithdrawalService *services.WithdrawalService
	GatewayService    *services.GatewayService // nil unless the gateway role is enabled
}

var Container *ServiceContainer
var containerOnce sync.Once

// InitializeContainer builds the singleton container and restores ledger
// state from the database.
func InitializeContainer() (*ServiceContainer, error) {
	var initErr error

	containerOnce.Do(func() {
		log.Println("🚀 Initializing Service Container...")

		logger := logrus.New()
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

		container := &ServiceContainer{
			DB:     db.DB,
			Logger: logger,
		}

		if err := container.initCollaborators(); err != nil {
			initErr = fmt.Errorf("failed to initialize collaborators: %w", err)
			return
		}
		if err := container.initLedgers(); err != nil {
			initErr = fmt.Errorf("failed to initialize ledgers: %w", err)
			return
		}
		if err := container.restoreState(); err != nil {
			initErr = fmt.Errorf("failed to restore ledger state: %w", err)
			return
		}
		container.initServices()
		container.armPauseSwitches()

		Container = container
		log.Println("✅ Service Container initialized successfully")
	})

	return Container, initErr
}

func (c *ServiceContainer) initCollaborators() error {
	cfg := config.AppConfig

	if cfg.Custodian.BaseURL != "" {
		c.CustodianClient = clients.NewCustodianClient(cfg.Custodian.BaseURL, time.Duration(cfg.Custodian.Timeout)*time.Second)
		log.Printf("✅ Custodian client: %s", cfg.Custodian.BaseURL)
	} else {
		log.Println("⚠️ No custodian configured, running in pure accounting mode")
	}

	if cfg.Yield.BaseURL != "" {
		c.YieldClient = clients.NewYieldVaultClient(cfg.Yield.BaseURL, time.Duration(cfg.Yield.Timeout)*time.Second)
		log.Printf("✅ Yield executor client: %s (%d vaults allowlisted)", cfg.Yield.BaseURL, len(cfg.Yield.AllowedVaults))
	}

	if cfg.NATS.URL != "" {
		stream := cfg.NATS.Stream
		if stream == "" {
			stream = "HAKO_EVENTS"
		}
		prefix := cfg.NATS.Subject
		if prefix == "" {
			prefix = "hako.events"
		}
		natsClient, err := clients.NewNATSClient(cfg.NATS.URL, stream, prefix)
		if err != nil {
			// The audit log persists regardless; the stream is best effort.
			log.Printf("⚠️ NATS unavailable, events will only be persisted: %v", err)
		} else {
			c.NATSClient = natsClient
		}
	} else {
		log.Println("NATS not configured, events will only be persisted")
	}

	c.Publisher = events.NewPublisher(
		repository.NewEventRepository(c.DB),
		c.NATSClient,
		cfg.Ledger.NetworkID,
		c.Logger,
	)
	return nil
}

func (c *ServiceContainer) initLedgers() error {
	cfg := config.AppConfig

	if !common.IsHexAddress(cfg.Ledger.Identity) {
		return fmt.Errorf("ledger.identity must be a hex address, got %q", cfg.Ledger.Identity)
	}

	// Switches start disarmed so restore and boot configuration can run;
	// armPauseSwitches applies the configured state afterwards.
	c.HomePause = services.NewPauseSwitch(false)

	var transport ledger.AssetTransport
	if c.CustodianClient != nil {
		transport = c.CustodianClient
	}
	var yieldClient ledger.ExternalVaultClient
	if c.YieldClient != nil {
		yieldClient = c.YieldClient
	}
	policy := services.NewStaticVaultPolicy(cfg.Yield.AllowedVaults)

	c.HomeLedger = ledger.NewLedger(
		cfg.Ledger.NetworkID,
		common.HexToAddress(cfg.Ledger.Identity),
		c.HomePause,
		transport,
		policy,
		yieldClient,
	)

	if cfg.Ledger.FeeBps > 0 || cfg.Ledger.FeeVault != "" {
		if !common.IsHexAddress(cfg.Ledger.FeeVault) {
			return fmt.Errorf("ledger.fee_vault must be a hex address when a fee is configured")
		}
		if err := c.HomeLedger.SetFeeConfig(cfg.Ledger.FeeBps, common.HexToAddress(cfg.Ledger.FeeVault)); err != nil {
			return fmt.Errorf("invalid fee configuration: %w", err)
		}
	}

	if cfg.Gateway.Enabled {
		if !common.IsHexAddress(cfg.Gateway.Identity) {
			return fmt.Errorf("gateway.identity must be a hex address, got %q", cfg.Gateway.Identity)
		}
		c.GatewayPause = services.NewPauseSwitch(false)
		c.GatewayLedger = ledger.NewGatewayLedger(
			cfg.Gateway.NetworkID,
			common.HexToAddress(cfg.Gateway.Identity),
			c.GatewayPause,
			transport,
			policy,
			yieldClient,
		)
	}
	return nil
}

func (c *ServiceContainer) restoreState() error {
	restore := services.NewRestoreService(c.DB, c.Logger)
	ctx := context.Background()
	if err := restore.RestoreHomeLedger(ctx, c.HomeLedger); err != nil {
		return err
	}
	if c.GatewayLedger != nil {
		if err := restore.RestoreGatewayLedger(ctx, c.GatewayLedger); err != nil {
			return err
		}
	}
	return nil
}

func (c *ServiceContainer) initServices() {
	c.VaultService = services.NewVaultService(c.HomeLedger, c.HomePause, c.DB, c.Publisher, c.Logger)
	c.WithdrawalService = services.NewWithdrawalService(c.HomeLedger, c.VaultService, c.DB, c.Publisher, c.Logger)
	if c.GatewayLedger != nil {
		c.GatewayService = services.NewGatewayService(c.GatewayLedger, c.GatewayPause, c.DB, c.Publisher, c.Logger)
	}
}

func (c *ServiceContainer) armPauseSwitches() {
	if config.AppConfig.Ledger.Paused {
		c.HomePause.Pause()
		c.Logger.Warn("ledger starts paused per configuration")
	}
	if c.GatewayPause != nil && config.AppConfig.Ledger.Paused {
		c.GatewayPause.Pause()
	}
}

// Cleanup releases external connections.
func (c *ServiceContainer) Cleanup() {
	log.Println("🧹 Cleaning up Service Container...")
	if c.NATSClient != nil {
		c.NATSClient.Close()
	}
	log.Println("✅ Service Container cleaned up")
}
