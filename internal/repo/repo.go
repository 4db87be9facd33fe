package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"homeline/internal/config"
	"homeline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func (r Repo) InsertProperty(ctx context.Context, p domain.Property) error {
	images, err := marshalImages(p.Images)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, `INSERT INTO properties(id,title,description,address,city,price,bedrooms,bathrooms,area_sqm,images_json,status,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Title, nullable(p.Description), p.Address, nullable(p.City), p.Price, p.Bedrooms, p.Bathrooms, p.AreaSqm, images, p.Status, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) GetProperty(ctx context.Context, id string) (domain.Property, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,title,description,address,city,price,bedrooms,bathrooms,area_sqm,images_json,status,created_at,updated_at FROM properties WHERE id=?`, id)
	return scanProperty(row.Scan)
}

func (r Repo) GetPropertyTx(ctx context.Context, tx *sql.Tx, id string) (domain.Property, error) {
	row := tx.QueryRowContext(ctx, `SELECT id,title,description,address,city,price,bedrooms,bathrooms,area_sqm,images_json,status,created_at,updated_at FROM properties WHERE id=?`, id)
	return scanProperty(row.Scan)
}

func scanProperty(scan func(...any) error) (domain.Property, error) {
	var p domain.Property
	var desc, city, images sql.NullString
	err := scan(&p.ID, &p.Title, &desc, &p.Address, &city, &p.Price, &p.Bedrooms, &p.Bathrooms, &p.AreaSqm, &images, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if desc.Valid {
		p.Description = desc.String
	}
	if city.Valid {
		p.City = city.String
	}
	if images.Valid && images.String != "" {
		if err := json.Unmarshal([]byte(images.String), &p.Images); err != nil {
			return p, fmt.Errorf("decode property images: %w", err)
		}
	}
	return p, nil
}

type PropertyFilters struct {
	Status          string
	City            string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListProperties(ctx context.Context, f PropertyFilters) ([]domain.Property, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.City != "" {
		clauses = append(clauses, "city=?")
		args = append(args, f.City)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT id,title,description,address,city,price,bedrooms,bathrooms,area_sqm,images_json,status,created_at,updated_at FROM properties ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Property
	for rows.Next() {
		p, err := scanProperty(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) UpdateProperty(ctx context.Context, p domain.Property) error {
	images, err := marshalImages(p.Images)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, `UPDATE properties SET title=?, description=?, address=?, city=?, price=?, bedrooms=?, bathrooms=?, area_sqm=?, images_json=?, status=?, updated_at=? WHERE id=?`,
		p.Title, nullable(p.Description), p.Address, nullable(p.City), p.Price, p.Bedrooms, p.Bathrooms, p.AreaSqm, images, p.Status, p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePropertyStatusTx moves a property between listing statuses inside the
// caller's transaction.
func (r Repo) UpdatePropertyStatusTx(ctx context.Context, tx *sql.Tx, id, status, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE properties SET status=?, updated_at=? WHERE id=?`, status, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteProperty(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM properties WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalImages(images []string) (any, error) {
	if len(images) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(images)
	if err != nil {
		return nil, fmt.Errorf("encode property images: %w", err)
	}
	return string(data), nil
}

// Pipeline configs are stored per property; the empty property id holds the
// workspace default.

func (r Repo) UpsertPipelineConfig(ctx context.Context, propertyID string, cfg *config.Config) error {
	return upsertPipelineConfig(ctx, r.DB, nil, propertyID, cfg)
}

func (r Repo) UpsertPipelineConfigTx(ctx context.Context, tx *sql.Tx, propertyID string, cfg *config.Config) error {
	return upsertPipelineConfig(ctx, nil, tx, propertyID, cfg)
}

func upsertPipelineConfig(ctx context.Context, db *sql.DB, tx *sql.Tx, propertyID string, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	exec := func(query string, args ...any) (sql.Result, error) {
		if tx != nil {
			return tx.ExecContext(ctx, query, args...)
		}
		return db.ExecContext(ctx, query, args...)
	}
	_, err = exec(`INSERT INTO pipeline_configs(property_id,config_yaml,updated_at) VALUES (?,?,?)
ON CONFLICT(property_id) DO UPDATE SET config_yaml=excluded.config_yaml, updated_at=excluded.updated_at`, propertyID, string(payload), now)
	return err
}

func (r Repo) GetPipelineConfig(ctx context.Context, propertyID string) (*config.Config, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT config_yaml FROM pipeline_configs WHERE property_id=?`, propertyID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return nil, err
	}
	return &cfg, cfg.Validate()
}

func (r Repo) LatestEvents(ctx context.Context, limit int, propertyID, evtType, entityKind, entityID string) ([]domain.Event, error) {
	return r.LatestEventsFrom(ctx, limit, 0, propertyID, evtType, entityKind, entityID)
}

func (r Repo) LatestEventsFrom(ctx context.Context, limit int, cursor int64, propertyID, evtType, entityKind, entityID string) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if propertyID != "" {
		clauses = append(clauses, "property_id=?")
		args = append(args, propertyID)
	}
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,COALESCE(property_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.PropertyID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64, propertyID string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses := []string{"1=1"}
	var args []any
	if propertyID != "" {
		clauses = append(clauses, "property_id=?")
		args = append(args, propertyID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id>?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,COALESCE(property_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events %s ORDER BY id ASC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.PropertyID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEventID returns the most recent event ID, optionally scoped to a property.
func (r Repo) LatestEventID(ctx context.Context, propertyID string) (int64, error) {
	query := `SELECT COALESCE(MAX(id),0) FROM events`
	var args []any
	if propertyID != "" {
		query += ` WHERE property_id=?`
		args = append(args, propertyID)
	}
	var id int64
	if err := r.DB.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// GetWebhookCursor returns the last delivered event id for a webhook URL.
func (r Repo) GetWebhookCursor(ctx context.Context, url string) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT last_event_id FROM webhook_cursors WHERE url=?`, url).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return id, err
}

func (r Repo) SetWebhookCursor(ctx context.Context, url string, lastEventID int64) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.DB.ExecContext(ctx, `INSERT INTO webhook_cursors(url,last_event_id,updated_at) VALUES (?,?,?)
ON CONFLICT(url) DO UPDATE SET last_event_id=excluded.last_event_id, updated_at=excluded.updated_at`, url, lastEventID, now)
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
