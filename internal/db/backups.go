package db

import (
	"database/sql"
	"fmt"
)

// BackupRow records that an account has a backup outstanding.
type BackupRow struct {
	Address   string
	Version   int
	Kind      string
	KDF       string
	CreatedAt string
	UpdatedAt string
}

// RestoreRow is one entry in the restore history.
type RestoreRow struct {
	ID           int64
	Address      string
	AccountIndex int
	RestoredAt   string
}

// MarkBackedUp records a completed backup for address. A second backup of the
// same account replaces the metadata and bumps updated_at.
func MarkBackedUp(d *DB, address string, version int, kind, kdf string) error {
	if d == nil || d.sql == nil {
		return fmt.Errorf("database handle is nil")
	}

	_, err := d.sql.Exec(
		`INSERT INTO backups (address, version, kind, kdf) VALUES (?, ?, ?, ?)
		 ON CONFLICT(address) DO UPDATE SET
			version = excluded.version,
			kind = excluded.kind,
			kdf = excluded.kdf,
			updated_at = CURRENT_TIMESTAMP`,
		address, version, kind, kdf,
	)
	if err != nil {
		return fmt.Errorf("mark backed up: %w", err)
	}
	return nil
}

// IsBackedUp reports whether address has a recorded backup.
func IsBackedUp(d *DB, address string) (bool, error) {
	if d == nil || d.sql == nil {
		return false, fmt.Errorf("database handle is nil")
	}

	var n int
	if err := d.sql.QueryRow(`SELECT COUNT(1) FROM backups WHERE address = ?`, address).Scan(&n); err != nil {
		return false, fmt.Errorf("select backup: %w", err)
	}
	return n > 0, nil
}

// GetBackup returns the row for address, or sql.ErrNoRows.
func GetBackup(d *DB, address string) (*BackupRow, error) {
	if d == nil || d.sql == nil {
		return nil, fmt.Errorf("database handle is nil")
	}

	var r BackupRow
	err := d.sql.QueryRow(
		`SELECT address, version, kind, kdf, created_at, updated_at
		 FROM backups
		 WHERE address = ?`,
		address,
	).Scan(&r.Address, &r.Version, &r.Kind, &r.KDF, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("select backup: %w", err)
	}
	return &r, nil
}

// ListBackups returns every recorded backup ordered by address.
func ListBackups(d *DB) ([]BackupRow, error) {
	if d == nil || d.sql == nil {
		return nil, fmt.Errorf("database handle is nil")
	}

	rows, err := d.sql.Query(
		`SELECT address, version, kind, kdf, created_at, updated_at
		 FROM backups
		 ORDER BY address`,
	)
	if err != nil {
		return nil, fmt.Errorf("select backups: %w", err)
	}
	defer rows.Close()

	var results []BackupRow
	for rows.Next() {
		var r BackupRow
		if err := rows.Scan(&r.Address, &r.Version, &r.Kind, &r.KDF, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan backup row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backup rows: %w", err)
	}
	return results, nil
}

// DeleteBackup forgets the backup for address.
// It returns sql.ErrNoRows if nothing was deleted.
func DeleteBackup(d *DB, address string) error {
	if d == nil || d.sql == nil {
		return fmt.Errorf("database handle is nil")
	}

	res, err := d.sql.Exec(`DELETE FROM backups WHERE address = ?`, address)
	if err != nil {
		return fmt.Errorf("delete backup: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RecordRestore appends to the restore history and returns the row ID.
func RecordRestore(d *DB, address string, index int) (int64, error) {
	if d == nil || d.sql == nil {
		return 0, fmt.Errorf("database handle is nil")
	}

	res, err := d.sql.Exec(
		`INSERT INTO restores (address, account_index) VALUES (?, ?)`,
		address, index,
	)
	if err != nil {
		return 0, fmt.Errorf("insert restore: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("fetch insert id: %w", err)
	}
	return id, nil
}

// ListRestores returns the restore history, newest first. limit <= 0 means all.
func ListRestores(d *DB, limit int) ([]RestoreRow, error) {
	if d == nil || d.sql == nil {
		return nil, fmt.Errorf("database handle is nil")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := d.sql.Query(
		`SELECT id, address, account_index, restored_at
		 FROM restores
		 ORDER BY id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select restores: %w", err)
	}
	defer rows.Close()

	var results []RestoreRow
	for rows.Next() {
		var r RestoreRow
		if err := rows.Scan(&r.ID, &r.Address, &r.AccountIndex, &r.RestoredAt); err != nil {
			return nil, fmt.Errorf("scan restore row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate restore rows: %w", err)
	}
	return results, nil
}
