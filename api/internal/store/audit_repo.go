package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrNotFound = sql.ErrNoRows

// AuditEntry is one prediction relayed by the bot, successful or not.
type AuditEntry struct {
	ID           int64
	CreatedAt    time.Time
	ChatID       int64
	UserID       *int64 // nil for anonymous use
	Kind         string
	ImageHash    string
	Label        string
	Confidence   *float64
	AssetURL     string
	ErrorKind    string // network | server | malformed | client, empty on success
	ErrorMessage string
	Duration     time.Duration
}

func (e AuditEntry) OK() bool { return e.ErrorKind == "" }

type AuditRepo struct{ DB *sql.DB }

func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{DB: db} }

const schema = `
create table if not exists prediction_audit (
  id            bigserial primary key,
  created_at    timestamptz not null default now(),
  chat_id       bigint not null,
  user_id       bigint,
  kind          text not null,
  image_hash    text not null,
  label         text,
  confidence    double precision,
  asset_url     text,
  error_kind    text,
  error_message text,
  duration_ms   bigint not null default 0
);
create index if not exists prediction_audit_chat_idx on prediction_audit (chat_id, created_at desc);
create index if not exists prediction_audit_created_idx on prediction_audit (created_at);`

// EnsureSchema creates the audit table when missing.
func (r *AuditRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, schema)
	return err
}

func (r *AuditRepo) Insert(ctx context.Context, e AuditEntry) (int64, error) {
	const q = `
insert into prediction_audit (
  chat_id, user_id, kind, image_hash, label, confidence,
  asset_url, error_kind, error_message, duration_ms
) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
returning id`
	var id int64
	err := r.DB.QueryRowContext(ctx, q,
		e.ChatID, nullInt64(e.UserID), e.Kind, e.ImageHash, nullString(e.Label), nullFloat64(e.Confidence),
		nullString(e.AssetURL), nullString(e.ErrorKind), nullString(e.ErrorMessage), e.Duration.Milliseconds(),
	).Scan(&id)
	return id, err
}

func (r *AuditRepo) CountByChat(ctx context.Context, chatID int64) (int64, error) {
	const q = `select count(*) from prediction_audit where chat_id = $1`
	var n int64
	err := r.DB.QueryRowContext(ctx, q, chatID).Scan(&n)
	return n, err
}

// RecentByChat returns the latest entries of a chat, newest first.
func (r *AuditRepo) RecentByChat(ctx context.Context, chatID int64, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `
select id, created_at, chat_id, user_id, kind, image_hash,
       coalesce(label,''), confidence, coalesce(asset_url,''),
       coalesce(error_kind,''), coalesce(error_message,''), duration_ms
from prediction_audit
where chat_id = $1
order by created_at desc, id desc
limit $2`
	rows, err := r.DB.QueryContext(ctx, q, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var (
			e    AuditEntry
			uid  sql.NullInt64
			conf sql.NullFloat64
			ms   int64
		)
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.ChatID, &uid, &e.Kind, &e.ImageHash,
			&e.Label, &conf, &e.AssetURL, &e.ErrorKind, &e.ErrorMessage, &ms); err != nil {
			return nil, err
		}
		if uid.Valid {
			v := uid.Int64
			e.UserID = &v
		}
		if conf.Valid {
			v := conf.Float64
			e.Confidence = &v
		}
		e.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}

// PurgeOlderThan deletes audit rows older than olderThan.
func (r *AuditRepo) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	cutoff := time.Now().Add(-olderThan)
	const q = `delete from prediction_audit where created_at < $1`
	res, err := r.DB.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, err
	}
	aff, _ := res.RowsAffected()
	return aff, nil
}

func nullString(s string) sql.NullString { return sql.NullString{String: s, Valid: s != ""} }

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullFloat64(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
