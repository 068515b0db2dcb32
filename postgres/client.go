package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jharbyjoel/appointment-app/appointment"
)

var errNotConnected = errors.New("client is not connected")

// pool defines the interface for database operations.
// This interface is satisfied by *pgxpool.Pool and can be mocked for testing.
type pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
	Ping(ctx context.Context) error
}

// Client is a PostgreSQL-backed implementation of [appointment.Store]. Rows
// mirror the single-table key layout: (pk, sk) is the primary key and
// tenant_date_key is indexed together with sk for date queries.
type Client struct {
	conn pool
	opts *options
}

var _ appointment.Store = (*Client)(nil)

func New(opts ...Option) *Client {
	o := newOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Client{opts: o}
}

func (c *Client) Connect(ctx context.Context) error {
	// Close existing connection if any to prevent leaks
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	if err := c.opts.validate(); err != nil {
		return fmt.Errorf("invalid Postgres db configuration: %w", err)
	}

	config, err := pgxpool.ParseConfig(c.opts.connectionString())
	if err != nil {
		return fmt.Errorf("failed to parse Postgres db connection string: %w", err)
	}

	if c.opts.poolMaxConnections != nil {
		config.MaxConns = *c.opts.poolMaxConnections
	}

	if c.opts.poolMinConnections != nil {
		config.MinConns = *c.opts.poolMinConnections
	}

	if c.opts.poolMaxConnectionLifetime != nil {
		config.MaxConnLifetime = *c.opts.poolMaxConnectionLifetime
	}

	if c.opts.poolMaxConnectionIdleTime != nil {
		config.MaxConnIdleTime = *c.opts.poolMaxConnectionIdleTime
	}

	if c.opts.poolHealthCheckPeriod != nil {
		config.HealthCheckPeriod = *c.opts.poolHealthCheckPeriod
	}

	conn, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create new Postgres connection pool: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return fmt.Errorf("failed to ping Postgres db: %w", err)
	}

	c.conn = conn

	return nil
}

func (c *Client) Close(_ context.Context) error {
	if c.conn == nil {
		return nil
	}

	c.conn.Close()

	c.conn = nil

	return nil
}

// Init creates the table and index if missing and, unless skipSchemaValidation
// is set, verifies the column layout against information_schema.
func (c *Client) Init(ctx context.Context, skipSchemaValidation bool) error {
	if c.conn == nil {
		return errNotConnected
	}

	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin init transaction: %w", err)
	}

	defer func() { _ = tx.Rollback(ctx) }() // No-op if committed

	for _, sql := range c.opts.createStatements() {
		if _, err := tx.Exec(ctx, sql); err != nil {
			return fmt.Errorf("failed to execute create statement: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit init transaction: %w", err)
	}

	if skipSchemaValidation {
		return nil
	}

	query := "SELECT table_name, column_name, data_type, is_nullable FROM information_schema.columns WHERE table_schema = 'public' AND table_name = $1 ORDER BY ordinal_position"

	rows, err := c.conn.Query(ctx, query, c.opts.appointmentsTable)
	if err != nil {
		return fmt.Errorf("failed to query information schema: %w", err)
	}

	defer rows.Close()

	infoRows := map[string]*dbRow{}

	for rows.Next() {
		var table, column string
		infoRow := &dbRow{}

		if err := rows.Scan(&table, &column, &infoRow.DataType, &infoRow.IsNullable); err != nil {
			return fmt.Errorf("failed to scan row from information schema: %w", err)
		}

		infoRows[table+"."+column] = infoRow
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating over rows from information schema: %w", err)
	}

	if err := c.opts.verifyCurrentDatabaseVersion(infoRows); err != nil {
		return fmt.Errorf("failed to verify current database version: %w", err)
	}

	return nil
}

// DropAllData drops the appointments table. Intended for tests only.
func (c *Client) DropAllData(ctx context.Context) error {
	if c.conn == nil {
		return errNotConnected
	}

	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin drop tables transaction: %w", err)
	}

	defer func() { _ = tx.Rollback(ctx) }() // No-op if committed

	for _, sql := range c.opts.dropStatements() {
		if _, err := tx.Exec(ctx, sql); err != nil {
			return fmt.Errorf("failed to execute drop statement: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit drop tables transaction: %w", err)
	}

	return nil
}

// Create upserts the appointment. An existing row with the same key is
// replaced entirely.
func (c *Client) Create(ctx context.Context, appt *appointment.Appointment) error {
	if c.conn == nil {
		return errNotConnected
	}

	if appt == nil {
		return errors.New("appointment cannot be nil")
	}

	if appt.TenantID == "" {
		return appointment.ErrMissingTenantID
	}

	pk, err := appointment.CustomerKey(appt.TenantID, appt.CustomerEmail)
	if err != nil {
		return fmt.Errorf("failed to build partition key: %w", err)
	}

	record := *appt
	record.AppointmentDate = appointment.AppointmentDate(appt.StartTime)

	body, err := json.Marshal(&record)
	if err != nil {
		return fmt.Errorf("failed to marshal appointment: %w", err)
	}

	param1 := pk
	param2 := appointment.AppointmentSortKey(appt.StartTime)
	param3 := AppointmentModelVersion
	param4 := appointment.TenantDateKey(appt.TenantID, record.AppointmentDate)
	param5 := string(body)

	sql := fmt.Sprintf("INSERT INTO %s (pk, sk, version, tenant_date_key, attrs) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (pk, sk) DO UPDATE SET version = EXCLUDED.version, tenant_date_key = EXCLUDED.tenant_date_key, attrs = EXCLUDED.attrs", c.opts.appointmentsTable)

	if _, err := c.conn.Exec(ctx, sql, param1, param2, param3, param4, param5); err != nil {
		return fmt.Errorf("failed to save appointment to Postgres db: %w", err)
	}

	return nil
}

// Update merges the patched fields into the row's attributes and returns the
// result. A missing row is inserted holding only the patched fields and no
// date key.
func (c *Client) Update(ctx context.Context, tenantID, customerEmail, startTime string, patch appointment.Patch) (*appointment.Appointment, error) {
	if c.conn == nil {
		return nil, errNotConnected
	}

	if tenantID == "" {
		return nil, appointment.ErrMissingTenantID
	}

	pk, err := appointment.CustomerKey(tenantID, customerEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to build partition key: %w", err)
	}

	body, err := json.Marshal(patchAttrs(patch))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal patch: %w", err)
	}

	param1 := pk
	param2 := appointment.AppointmentSortKey(startTime)
	param3 := AppointmentModelVersion
	param4 := string(body)

	sql := fmt.Sprintf("INSERT INTO %s AS t (pk, sk, version, tenant_date_key, attrs) VALUES ($1, $2, $3, NULL, $4) ON CONFLICT (pk, sk) DO UPDATE SET attrs = t.attrs || EXCLUDED.attrs RETURNING t.attrs", c.opts.appointmentsTable)

	row := c.conn.QueryRow(ctx, sql, param1, param2, param3, param4)

	var attrs json.RawMessage

	if err := row.Scan(&attrs); err != nil {
		return nil, fmt.Errorf("failed to update appointment in Postgres db: %w", err)
	}

	var appt appointment.Appointment

	if err := json.Unmarshal(attrs, &appt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal appointment: %w", err)
	}

	if appt.TenantID == "" {
		appt.TenantID = tenantID
	}

	if appt.CustomerEmail == "" {
		appt.CustomerEmail = customerEmail
	}

	if appt.StartTime == "" {
		appt.StartTime = startTime
	}

	return &appt, nil
}

// Delete removes the row at the key. Deleting a missing row is not an error.
func (c *Client) Delete(ctx context.Context, tenantID, customerEmail, startTime string) error {
	if c.conn == nil {
		return errNotConnected
	}

	if tenantID == "" {
		return appointment.ErrMissingTenantID
	}

	pk, err := appointment.CustomerKey(tenantID, customerEmail)
	if err != nil {
		return fmt.Errorf("failed to build partition key: %w", err)
	}

	param1 := pk
	param2 := appointment.AppointmentSortKey(startTime)

	query := fmt.Sprintf("DELETE FROM %s WHERE pk = $1 AND sk = $2", c.opts.appointmentsTable)

	if _, err := c.conn.Exec(ctx, query, param1, param2); err != nil {
		return fmt.Errorf("failed to delete appointment from Postgres db: %w", err)
	}

	return nil
}

// QueryByDate returns the tenant's appointments on date ordered by sort key.
func (c *Client) QueryByDate(ctx context.Context, tenantID, date string) ([]appointment.Appointment, error) {
	if c.conn == nil {
		return nil, errNotConnected
	}

	if tenantID == "" {
		return nil, appointment.ErrMissingTenantID
	}

	query := fmt.Sprintf("SELECT attrs FROM %s WHERE tenant_date_key = $1 ORDER BY sk", c.opts.appointmentsTable)

	rows, err := c.conn.Query(ctx, query, appointment.TenantDateKey(tenantID, date))
	if err != nil {
		return nil, fmt.Errorf("failed to query appointments in Postgres db: %w", err)
	}

	defer rows.Close()

	appointments := []appointment.Appointment{}

	for rows.Next() {
		var body json.RawMessage

		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan appointment row: %w", err)
		}

		var appt appointment.Appointment

		if err := json.Unmarshal(body, &appt); err != nil {
			return nil, fmt.Errorf("failed to unmarshal appointment: %w", err)
		}

		appointments = append(appointments, appt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows in Postgres db: %w", err)
	}

	return appointments, nil
}

func patchAttrs(patch appointment.Patch) map[string]string {
	attrs := map[string]string{
		"status": string(patch.StatusOrDefault()),
	}

	if patch.EndTime != nil {
		attrs["endTime"] = *patch.EndTime
	}

	if patch.Notes != nil {
		attrs["notes"] = *patch.Notes
	}

	if patch.Location != nil {
		attrs["location"] = *patch.Location
	}

	return attrs
}
