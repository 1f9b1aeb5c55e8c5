package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hakim/brandwatch/internal/models"
	"github.com/hakim/brandwatch/internal/storage"
)

func notFound(kind, id string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return err
}

// BrandRepository

const brandColumns = `id, owner_id, name, domain, keywords, social_handles, owned_domains, country_code, created_at, updated_at`

func scanBrand(row pgx.Row) (*models.Brand, error) {
	var b models.Brand
	err := row.Scan(&b.ID, &b.OwnerID, &b.Name, &b.Domain, &b.Keywords, &b.SocialHandles,
		&b.OwnedDomains, &b.CountryCode, &b.CreatedAt, &b.UpdatedAt)
	return &b, err
}

func (db *DB) CreateBrand(ctx context.Context, b *models.Brand) error {
	_, err := db.Pool.Exec(ctx, `
        INSERT INTO brands (`+brandColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `, b.ID, b.OwnerID, b.Name, b.Domain, b.Keywords, b.SocialHandles, b.OwnedDomains,
		b.CountryCode, b.CreatedAt, b.UpdatedAt)
	return err
}

func (db *DB) UpdateBrand(ctx context.Context, b *models.Brand) error {
	tag, err := db.Pool.Exec(ctx, `
        UPDATE brands
        SET keywords = $2, social_handles = $3, owned_domains = $4, country_code = $5, updated_at = $6
        WHERE id = $1
    `, b.ID, b.Keywords, b.SocialHandles, b.OwnedDomains, b.CountryCode, b.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("brand %s: %w", b.ID, storage.ErrNotFound)
	}
	return nil
}

func (db *DB) GetBrand(ctx context.Context, id string) (*models.Brand, error) {
	b, err := scanBrand(db.Pool.QueryRow(ctx, `SELECT `+brandColumns+` FROM brands WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("brand", id, err)
	}
	return b, nil
}

func (db *DB) ListBrands(ctx context.Context) ([]*models.Brand, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+brandColumns+` FROM brands ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Brand
	for rows.Next() {
		b, err := scanBrand(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ScanRepository

const scanColumns = `id, brand_id, type, trigger, preset, status, domains_checked, pages_scanned,
    threats_found, candidates, error, created_at, started_at, completed_at`

func scanScan(row pgx.Row) (*models.Scan, error) {
	var s models.Scan
	err := row.Scan(&s.ID, &s.BrandID, &s.Type, &s.Trigger, &s.Preset, &s.Status,
		&s.Counters.DomainsChecked, &s.Counters.PagesScanned, &s.Counters.ThreatsFound,
		&s.Candidates, &s.Error, &s.CreatedAt, &s.StartedAt, &s.CompletedAt)
	return &s, err
}

func (db *DB) SaveScan(ctx context.Context, s *models.Scan) error {
	_, err := db.Pool.Exec(ctx, `
        INSERT INTO scans (`+scanColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
        ON CONFLICT (id) DO UPDATE SET
            status = EXCLUDED.status,
            domains_checked = EXCLUDED.domains_checked,
            pages_scanned = EXCLUDED.pages_scanned,
            threats_found = EXCLUDED.threats_found,
            candidates = EXCLUDED.candidates,
            error = EXCLUDED.error,
            started_at = EXCLUDED.started_at,
            completed_at = EXCLUDED.completed_at
    `, s.ID, s.BrandID, s.Type, s.Trigger, s.Preset, s.Status,
		s.Counters.DomainsChecked, s.Counters.PagesScanned, s.Counters.ThreatsFound,
		s.Candidates, s.Error, s.CreatedAt, s.StartedAt, s.CompletedAt)
	return err
}

func (db *DB) GetScan(ctx context.Context, id string) (*models.Scan, error) {
	s, err := scanScan(db.Pool.QueryRow(ctx, `SELECT `+scanColumns+` FROM scans WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("scan", id, err)
	}
	return s, nil
}

func (db *DB) ListScans(ctx context.Context, brandID string) ([]*models.Scan, error) {
	return db.queryScans(ctx, `SELECT `+scanColumns+` FROM scans WHERE brand_id = $1 ORDER BY created_at DESC`, brandID)
}

func (db *DB) ListScansByStatus(ctx context.Context, statuses ...models.ScanStatus) ([]*models.Scan, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	return db.queryScans(ctx, `SELECT `+scanColumns+` FROM scans WHERE status = ANY($1) ORDER BY created_at`, names)
}

func (db *DB) queryScans(ctx context.Context, sql string, args ...any) ([]*models.Scan, error) {
	rows, err := db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Scan
	for rows.Next() {
		s, err := scanScan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ThreatRepository

const threatColumns = `id, brand_id, domain, url, type, severity, score, status, strategies, signals, detected_at, updated_at`

func scanThreat(row pgx.Row) (*models.Threat, error) {
	var t models.Threat
	err := row.Scan(&t.ID, &t.BrandID, &t.Domain, &t.URL, &t.Type, &t.Severity, &t.Score,
		&t.Status, &t.Strategies, &t.Signals, &t.DetectedAt, &t.UpdatedAt)
	return &t, err
}

func (db *DB) GetThreat(ctx context.Context, id string) (*models.Threat, error) {
	t, err := scanThreat(db.Pool.QueryRow(ctx, `SELECT `+threatColumns+` FROM threats WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("threat", id, err)
	}
	return t, nil
}

const updateThreatSQL = `
    UPDATE threats
    SET url = $4, type = $5, severity = $6, score = $7, status = $8,
        strategies = $9, signals = $10, detected_at = $11, updated_at = $12
    WHERE id = $1 AND brand_id = $2 AND domain = $3
`

func threatArgs(t *models.Threat) []any {
	return []any{t.ID, t.BrandID, t.Domain, t.URL, t.Type, t.Severity, t.Score, t.Status,
		t.Strategies, t.Signals, t.DetectedAt, t.UpdatedAt}
}

// UpdateThreatByKey locks the (brandID, domain) row, hands it to fn and
// writes the result. An insert that loses a race to a concurrent insert
// returns ErrConflict.
func (db *DB) UpdateThreatByKey(ctx context.Context, brandID, domain string, fn func(cur *models.Threat) (*models.Threat, error)) error {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	cur, err := scanThreat(tx.QueryRow(ctx,
		`SELECT `+threatColumns+` FROM threats WHERE brand_id = $1 AND domain = $2 FOR UPDATE`,
		brandID, domain))
	if errors.Is(err, pgx.ErrNoRows) {
		cur = nil
	} else if err != nil {
		return err
	}

	next, err := fn(cur)
	if err != nil || next == nil {
		return err
	}

	if cur == nil {
		tag, err := tx.Exec(ctx, `
            INSERT INTO threats (`+threatColumns+`)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
            ON CONFLICT (brand_id, domain) DO NOTHING
        `, threatArgs(next)...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}
	} else {
		if next.ID != cur.ID {
			return fmt.Errorf("threat %s/%s: id changed from %s to %s", brandID, domain, cur.ID, next.ID)
		}
		if _, err := tx.Exec(ctx, updateThreatSQL, threatArgs(next)...); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (db *DB) ListThreats(ctx context.Context, filter models.ThreatFilter) ([]*models.Threat, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT `+threatColumns+` FROM threats
        WHERE ($1 = '' OR brand_id = $1)
          AND ($2 = '' OR severity = $2)
          AND ($3 = '' OR status = $3)
        ORDER BY score DESC, domain
    `, filter.BrandID, string(filter.Severity), string(filter.Status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Threat
	for rows.Next() {
		t, err := scanThreat(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// AlertPolicyRepository

func (db *DB) GetAlertPolicy(ctx context.Context, userID string) (*models.AlertPolicy, error) {
	var p models.AlertPolicy
	err := db.Pool.QueryRow(ctx, `
        SELECT user_id, threshold, email_enabled, webhook_enabled
        FROM alert_policies WHERE user_id = $1
    `, userID).Scan(&p.UserID, &p.Threshold, &p.EmailEnabled, &p.WebhookEnabled)
	if err != nil {
		return nil, notFound("alert policy", userID, err)
	}
	return &p, nil
}

func (db *DB) SaveAlertPolicy(ctx context.Context, p *models.AlertPolicy) error {
	_, err := db.Pool.Exec(ctx, `
        INSERT INTO alert_policies (user_id, threshold, email_enabled, webhook_enabled)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (user_id) DO UPDATE SET
            threshold = EXCLUDED.threshold,
            email_enabled = EXCLUDED.email_enabled,
            webhook_enabled = EXCLUDED.webhook_enabled
    `, p.UserID, p.Threshold, p.EmailEnabled, p.WebhookEnabled)
	return err
}

// FindingRepository

func (db *DB) SaveFinding(ctx context.Context, scanID string, f models.Finding) error {
	_, err := db.Pool.Exec(ctx, `
        INSERT INTO findings (scan_id, domain, body)
        VALUES ($1, $2, $3)
        ON CONFLICT (scan_id, domain) DO UPDATE SET body = EXCLUDED.body
    `, scanID, f.Domain, f)
	return err
}

func (db *DB) ListFindings(ctx context.Context, scanID string) ([]models.Finding, error) {
	rows, err := db.Pool.Query(ctx, `SELECT body FROM findings WHERE scan_id = $1 ORDER BY domain`, scanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Finding
	for rows.Next() {
		var f models.Finding
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
