package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pg/pg/v10"
	"github.com/go-pg/pg/v10/orm"
	log "github.com/sirupsen/logrus"

	"github.com/aphrc/proposal-review/internal/domain"
	"github.com/aphrc/proposal-review/internal/ports"
)

// PostgresOptions configures the connection of a PostgresStore.
type PostgresOptions struct {
	Addr     string
	User     string
	Password string
	Database string
}

type mirroredRecordEntity struct {
	tableName struct{} `pg:"redcap_records"`

	ID         string            `pg:"id,pk,type:varchar,notnull"`
	RecordID   string            `pg:"record_id,type:varchar,notnull"`
	Instrument string            `pg:"instrument,type:varchar"`
	Data       map[string]string `pg:"data,type:jsonb,notnull"`
	CreatedAt  time.Time         `pg:"created_at,type:timestamptz,notnull"`
}

func makeEntity(rec ports.MirroredRecord) *mirroredRecordEntity {
	return &mirroredRecordEntity{
		ID:         rec.ID,
		RecordID:   rec.RecordID,
		Instrument: rec.Instrument,
		Data:       rec.Data,
		CreatedAt:  rec.CreatedAt,
	}
}

func makeRecord(ent mirroredRecordEntity) ports.MirroredRecord {
	return ports.MirroredRecord{
		ID:         ent.ID,
		RecordID:   ent.RecordID,
		Instrument: ent.Instrument,
		Data:       domain.RawRecord(ent.Data),
		CreatedAt:  ent.CreatedAt,
	}
}

// PostgresStore persists mirrored records in the redcap_records table.
type PostgresStore struct {
	db  *pg.DB
	now func() time.Time
}

var _ ports.MirrorStore = (*PostgresStore)(nil)

// NewPostgresStore connects to the database and creates the table when it
// does not exist yet.
func NewPostgresStore(ctx context.Context, opts PostgresOptions) (*PostgresStore, error) {
	db := pg.Connect(&pg.Options{
		Addr:     opts.Addr,
		User:     opts.User,
		Password: opts.Password,
		Database: opts.Database,
	})

	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, ports.NewStoreError("connect", err)
	}

	err := db.Model((*mirroredRecordEntity)(nil)).CreateTable(&orm.CreateTableOptions{IfNotExists: true})
	if err != nil {
		_ = db.Close()
		return nil, ports.NewStoreError("create_table", err)
	}
	log.Infof("Mirror store connected to %s/%s", opts.Addr, opts.Database)

	return &PostgresStore{db: db, now: time.Now}, nil
}

// Insert implements ports.MirrorStore.
func (s *PostgresStore) Insert(ctx context.Context, rec *ports.MirroredRecord) error {
	prepare(rec, s.now)
	if rec.Data == nil {
		rec.Data = domain.RawRecord{}
	}

	if _, err := s.db.ModelContext(ctx, makeEntity(*rec)).Insert(); err != nil {
		return ports.NewStoreError("insert", err)
	}
	return nil
}

// Latest implements ports.MirrorStore.
func (s *PostgresStore) Latest(ctx context.Context, limit int) ([]ports.MirroredRecord, error) {
	var ents []mirroredRecordEntity

	q := s.db.ModelContext(ctx, &ents).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Select(); err != nil {
		if err == pg.ErrNoRows {
			return nil, nil
		}
		return nil, ports.NewStoreError("latest", err)
	}

	out := make([]ports.MirroredRecord, 0, len(ents))
	for _, ent := range ents {
		out = append(out, makeRecord(ent))
	}
	return out, nil
}

// Ping implements ports.MirrorStore.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return ports.NewStoreError("ping", fmt.Errorf("%w: %v", ports.ErrServiceUnavailable, err))
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
