package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpv/catalog-engine/internal/model"
)

// PostgresItems implements ItemStore using PostgreSQL as the source of
// truth. Value columns are TEXT: the catalog stores display strings and
// parses them only at comparison time.
type PostgresItems struct {
	pool *pgxpool.Pool
}

// NewPostgresItems creates a new PostgreSQL-backed item store.
func NewPostgresItems(pool *pgxpool.Pool) *PostgresItems {
	return &PostgresItems{pool: pool}
}

const itemColumns = `id, name, rarity, stats, stats_mode,
	value_normal, value_golden, value_rainbow, value_void,
	COALESCE(image_url, ''), COALESCE(description, ''),
	created_at, updated_at`

func scanItem(row pgx.Row) (*model.Item, error) {
	var it model.Item
	err := row.Scan(&it.ID, &it.Name, &it.Rarity, &it.Stats, &it.StatsMode,
		&it.ValueNormal, &it.ValueGolden, &it.ValueRainbow, &it.ValueVoid,
		&it.ImageURL, &it.Description,
		&it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (s *PostgresItems) ListItems(ctx context.Context) ([]model.Item, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+itemColumns+` FROM items ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

func (s *PostgresItems) GetItem(ctx context.Context, id string) (*model.Item, error) {
	it, err := scanItem(s.pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return it, nil
}

func (s *PostgresItems) CreateItem(ctx context.Context, item *model.Item) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO items (id, name, rarity, stats, stats_mode,
		                    value_normal, value_golden, value_rainbow, value_void,
		                    image_url, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (id) DO NOTHING`,
		item.ID, item.Name, item.Rarity, item.Stats, item.StatsMode,
		item.ValueNormal, item.ValueGolden, item.ValueRainbow, item.ValueVoid,
		item.ImageURL, item.Description, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrItemExists, item.ID)
	}
	return nil
}

func (s *PostgresItems) UpdateItem(ctx context.Context, item *model.Item) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE items
		 SET name = $2, rarity = $3, stats = $4, stats_mode = $5,
		     value_normal = $6, value_golden = $7, value_rainbow = $8, value_void = $9,
		     image_url = $10, description = $11, updated_at = $12
		 WHERE id = $1`,
		item.ID, item.Name, item.Rarity, item.Stats, item.StatsMode,
		item.ValueNormal, item.ValueGolden, item.ValueRainbow, item.ValueVoid,
		item.ImageURL, item.Description, item.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrItemNotFound, item.ID)
	}
	return nil
}

func (s *PostgresItems) DeleteItem(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	return nil
}
