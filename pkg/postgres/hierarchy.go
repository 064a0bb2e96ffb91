package postgres

import (
	"context"
	"fmt"
)

// Related returns the unit, its ancestors and its descendants
func (d *DB) Related(ctx context.Context, unitID string) ([]string, error) {
	rows, err := d.pool.Query(ctx, `
		WITH RECURSIVE
		ancestors AS (
			SELECT id, parent_id FROM reservation_unit WHERE id = $1
			UNION
			SELECT u.id, u.parent_id FROM reservation_unit u JOIN ancestors a ON u.id = a.parent_id
		),
		descendants AS (
			SELECT id FROM reservation_unit WHERE id = $1
			UNION
			SELECT u.id FROM reservation_unit u JOIN descendants d ON u.parent_id = d.id
		)
		SELECT id FROM ancestors
		UNION
		SELECT id FROM descendants
		ORDER BY id
	`, unitID)
	if err != nil {
		return nil, fmt.Errorf("failed to query related units: %w", err)
	}
	defer rows.Close()

	var related []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan related unit: %w", err)
		}
		related = append(related, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating related units: %w", err)
	}

	// Units missing from the table still conflict with themselves
	if len(related) == 0 {
		related = []string{unitID}
	}

	return related, nil
}

// Root returns the top-most ancestor of a unit
func (d *DB) Root(ctx context.Context, unitID string) (string, error) {
	var root string
	err := d.pool.QueryRow(ctx, `
		WITH RECURSIVE ancestors AS (
			SELECT id, parent_id, 0 AS depth FROM reservation_unit WHERE id = $1
			UNION ALL
			SELECT u.id, u.parent_id, a.depth + 1
			FROM reservation_unit u JOIN ancestors a ON u.id = a.parent_id
			WHERE a.depth < 64
		)
		SELECT COALESCE((SELECT id FROM ancestors ORDER BY depth DESC LIMIT 1), $1)
	`, unitID).Scan(&root)
	if err != nil {
		return "", fmt.Errorf("failed to query root unit: %w", err)
	}
	return root, nil
}
