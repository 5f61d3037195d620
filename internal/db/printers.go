package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/banshee-data/hexslice/internal/device"
)

var (
	ErrPrinterNotFound = errors.New("printer not found")
	ErrPrinterExists   = errors.New("printer already exists")
	ErrInvalidPrinter  = errors.New("invalid printer profile")
)

var printerName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// Printer is a named connection profile. Serial holds line settings that
// override whatever the target string carries; zero fields mean "unset".
type Printer struct {
	ID          int64
	Name        string
	Target      string
	Serial      device.PortOptions
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreatePrinter stores a new profile and returns its id.
func (db *DB) CreatePrinter(ctx context.Context, p Printer) (int64, error) {
	if !printerName.MatchString(p.Name) {
		return 0, fmt.Errorf("%w: name %q must be 1-64 letters, digits, '.', '_' or '-'", ErrInvalidPrinter, p.Name)
	}
	if strings.Contains(p.Name, "://") {
		return 0, fmt.Errorf("%w: name %q looks like a target", ErrInvalidPrinter, p.Name)
	}
	if _, err := device.ParseTarget(p.Target); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPrinter, err)
	}
	if _, err := p.Serial.Normalize(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPrinter, err)
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO printers (name, target, baud_rate, data_bits, stop_bits, parity, description)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Name, strings.TrimSpace(p.Target), p.Serial.BaudRate, p.Serial.DataBits,
		p.Serial.StopBits, p.Serial.Parity, p.Description,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, fmt.Errorf("%w: %s", ErrPrinterExists, p.Name)
		}
		return 0, fmt.Errorf("failed to create printer: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get printer id: %w", err)
	}
	diagf("created printer %s -> %s", p.Name, p.Target)
	return id, nil
}

const printerColumns = `id, name, target, baud_rate, data_bits, stop_bits, parity, description, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrinter(s rowScanner) (Printer, error) {
	var (
		p                Printer
		created, updated int64
	)
	err := s.Scan(&p.ID, &p.Name, &p.Target, &p.Serial.BaudRate, &p.Serial.DataBits,
		&p.Serial.StopBits, &p.Serial.Parity, &p.Description, &created, &updated)
	if err != nil {
		return Printer{}, err
	}
	p.CreatedAt = time.Unix(created, 0).UTC()
	p.UpdatedAt = time.Unix(updated, 0).UTC()
	return p, nil
}

// Printer returns the profile called name.
func (db *DB) Printer(ctx context.Context, name string) (Printer, error) {
	row := db.QueryRowContext(ctx, `SELECT `+printerColumns+` FROM printers WHERE name = ?`, name)
	p, err := scanPrinter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Printer{}, fmt.Errorf("%w: %s", ErrPrinterNotFound, name)
	}
	if err != nil {
		return Printer{}, fmt.Errorf("failed to get printer %s: %w", name, err)
	}
	return p, nil
}

// Printers lists every profile ordered by name.
func (db *DB) Printers(ctx context.Context) ([]Printer, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+printerColumns+` FROM printers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query printers: %w", err)
	}
	defer rows.Close()

	var printers []Printer
	for rows.Next() {
		p, err := scanPrinter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan printer: %w", err)
		}
		printers = append(printers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate printers: %w", err)
	}
	return printers, nil
}

// DeletePrinter removes the profile called name.
func (db *DB) DeletePrinter(ctx context.Context, name string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM printers WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete printer %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrPrinterNotFound, name)
	}
	diagf("deleted printer %s", name)
	return nil
}

// ResolveTarget maps a profile name onto its connection target. Serial
// settings stored with the profile take precedence over those in the
// profile's target string. ok is false when no profile is called name.
func (db *DB) ResolveTarget(ctx context.Context, name string) (string, bool, error) {
	p, err := db.Printer(ctx, name)
	if errors.Is(err, ErrPrinterNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	t, err := device.ParseTarget(p.Target)
	if err != nil {
		return "", true, fmt.Errorf("printer %s has an invalid target: %w", name, err)
	}
	if t.Scheme == device.SchemeSerial {
		t.Serial = p.Serial.WithDefaults(t.Serial)
	}
	return t.URL(), true, nil
}
