package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"bible-rag/internal/models"
)

// ConversationTurn is one archived question/answer exchange.
type ConversationTurn struct {
	bun.BaseModel `bun:"table:conversation_turns,alias:ct"`
	ID            string          `bun:"id,pk"`
	SessionID     string          `bun:"session_id,notnull"`
	Question      string          `bun:"question,notnull"`
	Answer        string          `bun:"answer"`
	Sources       []models.Source `bun:"sources,type:jsonb"`
	NoContext     bool            `bun:"no_context,notnull"`
	Failed        bool            `bun:"failed,notnull"`
	AskedAt       time.Time       `bun:"asked_at,notnull,default:current_timestamp"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func ConnectDB(dsn string) *sql.DB {
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
}

func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().Model((*ConversationTurn)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create conversation_turns: %w", err)
	}
	_, err := db.NewCreateIndex().
		Model((*ConversationTurn)(nil)).
		Index("conversation_turns_session_idx").
		IfNotExists().
		Column("session_id", "asked_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create conversation_turns index: %w", err)
	}
	return nil
}

// Archive stores chat transcripts in Postgres.
type Archive struct {
	db *bun.DB
}

// Open connects to dsn, verifies the connection and creates the schema.
func Open(ctx context.Context, dsn string, debug bool) (*Archive, error) {
	db := NewDB(ConnectDB(dsn), debug)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect archive: %w", err)
	}
	if err := InitDB(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info().Msg("Connected transcript archive")
	return NewArchive(db), nil
}

func NewArchive(db *bun.DB) *Archive {
	return &Archive{db: db}
}

func (a *Archive) Close() error {
	return a.db.Close()
}

// StoreTurn inserts a turn; re-storing the same turn ID is a no-op.
func (a *Archive) StoreTurn(ctx context.Context, sessionID string, turn models.Turn) error {
	row := toRow(sessionID, turn)
	_, err := a.db.NewInsert().Model(row).On("CONFLICT (id) DO NOTHING").Exec(ctx)
	if err != nil {
		return fmt.Errorf("store turn: %w", err)
	}
	return nil
}

// ListTurns returns the most recent turns of a session, oldest first.
func (a *Archive) ListTurns(ctx context.Context, sessionID string, limit int) ([]models.Turn, error) {
	var rows []ConversationTurn
	q := a.db.NewSelect().
		Model(&rows).
		Where("session_id = ?", sessionID).
		OrderExpr("asked_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}

	turns := make([]models.Turn, len(rows))
	for i, r := range rows {
		turns[len(rows)-1-i] = fromRow(r)
	}
	return turns, nil
}

func toRow(sessionID string, t models.Turn) *ConversationTurn {
	return &ConversationTurn{
		ID:        t.ID,
		SessionID: sessionID,
		Question:  t.Question,
		Answer:    t.Answer,
		Sources:   t.Sources,
		NoContext: t.NoContext,
		Failed:    t.Failed,
		AskedAt:   t.AskedAt,
	}
}

func fromRow(r ConversationTurn) models.Turn {
	return models.Turn{
		ID:        r.ID,
		Question:  r.Question,
		Answer:    r.Answer,
		Sources:   r.Sources,
		NoContext: r.NoContext,
		Failed:    r.Failed,
		AskedAt:   r.AskedAt,
	}
}
