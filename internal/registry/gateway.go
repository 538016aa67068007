package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Gateway defines the local registry persistence operations the
// synchronizers need. Every call is tenant-scoped through an explicit
// parameter; there is no ambient tenant context.
type Gateway interface {
	// ExistsByControllerID reports whether the device exists.
	ExistsByControllerID(ctx context.Context, tenant string, controllerID string) (bool, error)

	// GetByControllerID retrieves a device.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByControllerID(ctx context.Context, tenant string, controllerID string) (*Device, error)

	// Create inserts a new device flagged for attribute polling.
	// Creating an existing (tenant, controller id) pair is a no-op, so
	// redundant instances and replayed events converge instead of erroring.
	Create(ctx context.Context, tenant string, controllerID string, address string, securityToken string) error

	// DeleteByControllerID removes a device.
	// Returns ErrDeviceNotFound if the device does not exist.
	DeleteByControllerID(ctx context.Context, tenant string, controllerID string) error

	// MergeAttributes folds attrs into the device's existing attribute
	// map (merge, never replace) and clears the attributes-requested
	// flag. Returns ErrDeviceNotFound if the device does not exist.
	MergeAttributes(ctx context.Context, tenant string, controllerID string, attrs map[string]string) error

	// RequestAttributes flags the device for the next twin polling pass.
	// Returns ErrDeviceNotFound if the device does not exist.
	RequestAttributes(ctx context.Context, tenant string, controllerID string) error

	// PageDevicesWithAttributesRequested returns up to pageSize controller
	// ids currently flagged for attribute polling, in stable order.
	PageDevicesWithAttributesRequested(ctx context.Context, tenant string, pageSize int) ([]string, error)
}

// SQLiteGateway implements Gateway using SQLite.
type SQLiteGateway struct {
	db *sql.DB
}

// NewSQLiteGateway creates a new SQLite-backed gateway.
// The db parameter should be an open SQLite connection with the schema
// migrated.
func NewSQLiteGateway(db *sql.DB) *SQLiteGateway {
	return &SQLiteGateway{db: db}
}

// ExistsByControllerID reports whether the device exists.
func (g *SQLiteGateway) ExistsByControllerID(ctx context.Context, tenant string, controllerID string) (bool, error) {
	query := `SELECT 1 FROM devices WHERE tenant = ? AND controller_id = ?`

	var one int
	err := g.db.QueryRowContext(ctx, query, tenant, controllerID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying device existence: %w", err)
	}
	return true, nil
}

// GetByControllerID retrieves a device.
func (g *SQLiteGateway) GetByControllerID(ctx context.Context, tenant string, controllerID string) (*Device, error) {
	query := `
		SELECT tenant, controller_id, address, security_token, attributes,
			attributes_requested, created_at, updated_at
		FROM devices
		WHERE tenant = ? AND controller_id = ?`

	row := g.db.QueryRowContext(ctx, query, tenant, controllerID)
	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device: %w", err)
	}
	return device, nil
}

// Create inserts a new device flagged for attribute polling.
func (g *SQLiteGateway) Create(ctx context.Context, tenant string, controllerID string, address string, securityToken string) error {
	if tenant == "" || controllerID == "" {
		return ErrInvalidDevice
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	query := `
		INSERT INTO devices (tenant, controller_id, address, security_token,
			attributes, attributes_requested, created_at, updated_at)
		VALUES (?, ?, ?, ?, '{}', 1, ?, ?)
		ON CONFLICT(tenant, controller_id) DO NOTHING`

	if _, err := g.db.ExecContext(ctx, query, tenant, controllerID, address, securityToken, now, now); err != nil {
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// DeleteByControllerID removes a device.
func (g *SQLiteGateway) DeleteByControllerID(ctx context.Context, tenant string, controllerID string) error {
	result, err := g.db.ExecContext(ctx,
		`DELETE FROM devices WHERE tenant = ? AND controller_id = ?`,
		tenant, controllerID)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// MergeAttributes folds attrs into the device's attribute map.
//
// The read-modify-write runs in a transaction so concurrent merges and
// deletions cannot interleave half-applied attribute maps.
func (g *SQLiteGateway) MergeAttributes(ctx context.Context, tenant string, controllerID string, attrs map[string]string) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning merge transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT attributes FROM devices WHERE tenant = ? AND controller_id = ?`,
		tenant, controllerID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDeviceNotFound
	}
	if err != nil {
		return fmt.Errorf("reading attributes: %w", err)
	}

	existing := make(map[string]string)
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &existing); err != nil {
			return fmt.Errorf("decoding stored attributes: %w", err)
		}
	}
	for key, value := range attrs {
		existing[key] = value
	}

	merged, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("encoding attributes: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = tx.ExecContext(ctx,
		`UPDATE devices
			SET attributes = ?, attributes_requested = 0, updated_at = ?
			WHERE tenant = ? AND controller_id = ?`,
		string(merged), now, tenant, controllerID)
	if err != nil {
		return fmt.Errorf("writing attributes: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing merge: %w", err)
	}
	return nil
}

// RequestAttributes flags the device for the next twin polling pass.
func (g *SQLiteGateway) RequestAttributes(ctx context.Context, tenant string, controllerID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	result, err := g.db.ExecContext(ctx,
		`UPDATE devices
			SET attributes_requested = 1, updated_at = ?
			WHERE tenant = ? AND controller_id = ?`,
		now, tenant, controllerID)
	if err != nil {
		return fmt.Errorf("flagging device: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking flag result: %w", err)
	}
	if rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// PageDevicesWithAttributesRequested returns flagged controller ids.
func (g *SQLiteGateway) PageDevicesWithAttributesRequested(ctx context.Context, tenant string, pageSize int) ([]string, error) {
	query := `
		SELECT controller_id
		FROM devices
		WHERE tenant = ? AND attributes_requested = 1
		ORDER BY controller_id
		LIMIT ?`

	rows, err := g.db.QueryContext(ctx, query, tenant, pageSize)
	if err != nil {
		return nil, fmt.Errorf("paging flagged devices: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning controller id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating flagged devices: %w", err)
	}
	return ids, nil
}

// scanDevice maps one row onto a Device.
func scanDevice(row *sql.Row) (*Device, error) {
	var d Device
	var attrs string
	var requested int
	var createdAt, updatedAt string

	err := row.Scan(&d.Tenant, &d.ControllerID, &d.Address, &d.SecurityToken,
		&attrs, &requested, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if attrs != "" {
		if err := json.Unmarshal([]byte(attrs), &d.Attributes); err != nil {
			return nil, fmt.Errorf("decoding attributes: %w", err)
		}
	}
	if d.Attributes == nil {
		d.Attributes = make(map[string]string)
	}
	d.AttributesRequested = requested != 0

	if d.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if d.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &d, nil
}
