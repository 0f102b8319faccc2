package routestore

import (
	"context"
	"database/sql"
	"encoding/json"

	_ "github.com/lib/pq"

	"github.com/example/waymate/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) ListCustomRoutes(ctx context.Context) ([]models.CustomRoute, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, origin_lat, origin_lng, origin_desc, dest_lat, dest_lng, dest_desc, travel_mode, route_path, distance_m, duration_s FROM custom_routes`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.CustomRoute
	for rows.Next() {
		var r models.CustomRoute
		var mode string
		var path []byte
		if err := rows.Scan(&r.ID, &r.Origin.Lat, &r.Origin.Lng, &r.Origin.Description,
			&r.Destination.Lat, &r.Destination.Lng, &r.Destination.Description,
			&mode, &path, &r.DistanceM, &r.DurationS); err != nil {
			return nil, err
		}
		r.TravelMode = models.TravelMode(mode)
		if err := json.Unmarshal(path, &r.RoutePath); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Close() error { return p.db.Close() }
