// Package service is the host for backup and restore. It builds the single
// KeyStore, owns the registry and hands out flows wired to both.
package service

import (
	"database/sql"
	"errors"
	"fmt"

	clog "github.com/charmbracelet/log"

	"github.com/Hussein-Mazeh/KeyRecovery/account"
	"github.com/Hussein-Mazeh/KeyRecovery/internal/config"
	"github.com/Hussein-Mazeh/KeyRecovery/internal/db"
	"github.com/Hussein-Mazeh/KeyRecovery/internal/flow"
	"github.com/Hussein-Mazeh/KeyRecovery/internal/keychain"
	"github.com/Hussein-Mazeh/KeyRecovery/internal/keystore"
	"github.com/Hussein-Mazeh/KeyRecovery/internal/logging"
	"github.com/Hussein-Mazeh/KeyRecovery/internal/secret"
	"github.com/Hussein-Mazeh/KeyRecovery/store"
)

// Service exposes backup and restore to the CLI.
type Service struct {
	cfg   *config.Config
	ks    *keystore.KeyStore
	db    *db.DB
	paths store.Paths
	log   *clog.Logger
}

// New opens the registry under cfg.DataDir and builds the KeyStore. Extra
// options are applied after the ones derived from cfg.
func New(cfg *config.Config, opts ...keystore.Option) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	handle, err := db.Open(cfg.RegistryPath())
	if err != nil {
		return nil, fmt.Errorf("open registry (%s): %w", cfg.RegistryPath(), err)
	}
	if err := db.Migrate(handle); err != nil {
		db.Close(handle)
		return nil, err
	}

	ksOpts := append(cfg.KeyStoreOptions(), opts...)
	return &Service{
		cfg:   cfg,
		ks:    keystore.New(ksOpts...),
		db:    handle,
		paths: store.Paths{Dir: cfg.BackupDir()},
		log:   logging.With("component", "service"),
	}, nil
}

// Close releases the registry.
func (s *Service) Close() error {
	return db.Close(s.db)
}

// KeyStore returns the shared KeyStore.
func (s *Service) KeyStore() *keystore.KeyStore { return s.ks }

// NewBackup starts a backup flow for m. When the user confirms the secret was
// saved, the account is recorded as backed up and then done is called.
func (s *Service) NewBackup(loop flow.Dispatcher, m account.SeedMaterial, done func(*secret.EncryptedSecret)) (*flow.Backup, error) {
	return flow.NewBackup(s.ks, loop, m, func(sec *secret.EncryptedSecret) {
		if err := db.MarkBackedUp(s.db, sec.Address, int(sec.Version), sec.Kind.String(), sec.KDF.Name); err != nil {
			s.log.Error("record backup", "address", sec.Address, "err", err)
		}
		if done != nil {
			done(sec)
		}
	})
}

// NewRestore starts a restore flow. The chosen account is appended to the
// restore history and then passed to done.
func (s *Service) NewRestore(loop flow.Dispatcher, done func(flow.RestoreResult)) *flow.Restore {
	return flow.NewRestore(s.ks, loop, func(res flow.RestoreResult) {
		if _, err := db.RecordRestore(s.db, res.Account.Address, res.Index); err != nil {
			s.log.Error("record restore", "address", res.Account.Address, "err", err)
		}
		if done != nil {
			done(res)
		}
	}, flow.WithMaxAttempts(s.cfg.MaxAttempts))
}

// Inspect parses backup text without decrypting it.
func (s *Service) Inspect(text string) (*secret.EncryptedSecret, error) {
	return s.ks.ParseSecret(text)
}

// SaveBackupFile writes text to path, or to the default backup directory
// when path is empty, and returns where it went.
func (s *Service) SaveBackupFile(address, text, path string) (string, error) {
	if path == "" {
		return store.SaveSecret(s.paths, address, text)
	}
	if err := store.SaveSecretFile(path, text); err != nil {
		return "", err
	}
	return path, nil
}

// LoadBackupFile reads backup text from path.
func (s *Service) LoadBackupFile(path string) (string, error) {
	return store.LoadSecretFile(path)
}

// SaveToKeychain copies text into the OS credential store.
func (s *Service) SaveToKeychain(address, text string) error {
	return keychain.Save(address, text)
}

// LoadFromKeychain returns the text stored for address.
func (s *Service) LoadFromKeychain(address string) (string, error) {
	e, err := keychain.Load(address)
	if err != nil {
		return "", err
	}
	return e.Secret, nil
}

// Status returns the registry row for address, or nil when it has no backup.
func (s *Service) Status(address string) (*db.BackupRow, error) {
	row, err := db.GetBackup(s.db, address)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return row, err
}

// Backups lists every recorded backup.
func (s *Service) Backups() ([]db.BackupRow, error) {
	return db.ListBackups(s.db)
}

// Forget drops the registry row for address.
func (s *Service) Forget(address string) error {
	if err := db.DeleteBackup(s.db, address); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("no backup recorded for %s", address)
		}
		return err
	}
	return nil
}

// History returns recent restores, newest first.
func (s *Service) History(limit int) ([]db.RestoreRow, error) {
	return db.ListRestores(s.db, limit)
}
