package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const assetColumns = `id, symbol, precision, enabled, created_at`

func (q *Queries) CreateAsset(ctx context.Context, asset *models.Asset) error {
	query := `INSERT INTO assets (id, symbol, precision, enabled, created_at) VALUES ($1, $2, $3, $4, NOW()) RETURNING created_at`
	err := q.db.QueryRow(ctx, query, asset.ID, asset.Symbol, asset.Precision, asset.Enabled).Scan(&asset.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create asset: %w", err)
	}
	return nil
}

func (q *Queries) GetAssetBySymbol(ctx context.Context, symbol string) (models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE symbol = $1`
	return scanAsset(q.db.QueryRow(ctx, query, symbol))
}

func (q *Queries) GetAsset(ctx context.Context, id uuid.UUID) (models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = $1`
	return scanAsset(q.db.QueryRow(ctx, query, id))
}

func (q *Queries) ListAssets(ctx context.Context) ([]models.Asset, error) {
	rows, err := q.db.Query(ctx, `SELECT `+assetColumns+` FROM assets ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	var assets []models.Asset
	for rows.Next() {
		var a models.Asset
		if err := rows.Scan(&a.ID, &a.Symbol, &a.Precision, &a.Enabled, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

func scanAsset(row pgx.Row) (models.Asset, error) {
	var a models.Asset
	err := row.Scan(&a.ID, &a.Symbol, &a.Precision, &a.Enabled, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Asset{}, models.ErrNotFound
		}
		return models.Asset{}, fmt.Errorf("failed to get asset: %w", err)
	}
	return a, nil
}
