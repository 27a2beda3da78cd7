// Package store is the persistence gateway: the atomic multi-table
// write of a completed route session, the single-table bus-stop write,
// and the cancellation mark. All writes go through database/sql with
// the pgx driver against a PostGIS-enabled Postgres.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"transitlab-bot/internal/simplify"
	"transitlab-bot/internal/survey"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// Gateway owns the durable representation of completed surveys. Every
// operation is bounded by writeTimeout and rolled back on failure.
type Gateway struct {
	db           *sql.DB
	writeTimeout time.Duration
	tolerance    float64 // simplification tolerance, squared degrees
}

func NewGateway(db *sql.DB, writeTimeout time.Duration, tolerance float64) *Gateway {
	return &Gateway{db: db, writeTimeout: writeTimeout, tolerance: tolerance}
}

const insertPointSQL = `
INSERT INTO bus_routes
  (user_id, telegram_username, session_id, vehicle_type, point_id,
   date, time, source, destination, lat, lon, point_type, cancel, geom_point)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, FALSE,
        ST_SetSRID(ST_MakePoint($11, $10), 4326))`

const insertFareSQL = `
INSERT INTO fares
  (user_id, telegram_username, session_id, date, time,
   source, destination, fare, vehicle_condition, vehicle_type)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const insertSimplifiedSQL = `
INSERT INTO simplified_bus_routes
  (session_id, user_id, telegram_username, vehicle_type, date, time,
   source, destination, cancel, geom_line)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE,
        ST_SetSRID(ST_GeomFromText($9), 4326))`

const insertStopSQL = `
INSERT INTO bus_stops
  (user_id, telegram_username, session_id, vehicle_type, date, time,
   destination, lat, lon, cancel, geom_point)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE,
        ST_SetSRID(ST_MakePoint($9, $8), 4326))`

const markCanceledSQL = `
UPDATE bus_routes SET cancel = TRUE WHERE user_id = $1 AND session_id = $2`

// SaveRoute writes a complete route session as one unit of work: every
// routing and boarding point (point_id is 1-based per point kind, in
// insertion order), the fare/condition row, and the simplified
// polyline derived from the routing points. All rows or none.
func (g *Gateway) SaveRoute(ctx context.Context, rec survey.RouteRecord) error {
	ctx, cancel := context.WithTimeout(ctx, g.writeTimeout)
	defer cancel()

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return &survey.PersistenceError{Op: "save route", Err: err}
	}
	if err := g.saveRouteTx(ctx, tx, rec); err != nil {
		_ = tx.Rollback()
		return &survey.PersistenceError{Op: "save route", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &survey.PersistenceError{Op: "save route", Err: err}
	}
	return nil
}

func (g *Gateway) saveRouteTx(ctx context.Context, tx *sql.Tx, rec survey.RouteRecord) error {
	insertKind := func(points []survey.RoutePoint) error {
		for i, p := range points {
			_, err := tx.ExecContext(ctx, insertPointSQL,
				rec.UserID, rec.Username, rec.SessionID, rec.VehicleType, i+1,
				p.Time.Format("2006-01-02"), p.Time.Format("15:04:05"),
				rec.Source, rec.Destination, p.Lat, p.Lon, string(p.Kind))
			if err != nil {
				return fmt.Errorf("insert %s point %d: %w", p.Kind, i+1, err)
			}
		}
		return nil
	}
	if err := insertKind(rec.Track.Routing); err != nil {
		return err
	}
	if err := insertKind(rec.Track.Boarding); err != nil {
		return err
	}

	_, err := tx.ExecContext(ctx, insertFareSQL,
		rec.UserID, rec.Username, rec.SessionID,
		rec.RecordedAt.Format("2006-01-02"), rec.RecordedAt.Format("15:04:05"),
		rec.Source, rec.Destination, rec.Fare, rec.Condition, rec.VehicleType)
	if err != nil {
		return fmt.Errorf("insert fare: %w", err)
	}

	// A linestring needs two points; shorter tracks keep their point and
	// fare rows but get no simplified geometry.
	if len(rec.Track.Routing) >= 2 {
		line := routingLine(rec.Track.Routing)
		reduced := simplify.VisvalingamWhyatt(line, g.tolerance)
		_, err := tx.ExecContext(ctx, insertSimplifiedSQL,
			rec.SessionID, rec.UserID, rec.Username, rec.VehicleType,
			rec.RecordedAt.Format("2006-01-02"), rec.RecordedAt.Format("15:04:05"),
			rec.Source, rec.Destination, wkt.MarshalString(reduced))
		if err != nil {
			return fmt.Errorf("insert simplified route: %w", err)
		}
	}
	return nil
}

// SaveStop writes one bus-stop record with its captured location.
func (g *Gateway) SaveStop(ctx context.Context, rec survey.StopRecord) error {
	ctx, cancel := context.WithTimeout(ctx, g.writeTimeout)
	defer cancel()

	_, err := g.db.ExecContext(ctx, insertStopSQL,
		rec.UserID, rec.Username, rec.SessionID, rec.VehicleType,
		rec.RecordedAt.Format("2006-01-02"), rec.RecordedAt.Format("15:04:05"),
		rec.Destination, rec.Lat, rec.Lon)
	if err != nil {
		return &survey.PersistenceError{Op: "save stop", Err: err}
	}
	return nil
}

// MarkCanceled flips the cancel flag on the route rows of the given
// session. Rows are never deleted; a session canceled before any write
// simply matches zero rows.
func (g *Gateway) MarkCanceled(ctx context.Context, userID int64, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, g.writeTimeout)
	defer cancel()

	if _, err := g.db.ExecContext(ctx, markCanceledSQL, userID, sessionID); err != nil {
		return &survey.PersistenceError{Op: "mark canceled", Err: err}
	}
	return nil
}

// routingLine orders points as (lon, lat) pairs the way PostGIS and the
// simplifier expect.
func routingLine(points []survey.RoutePoint) orb.LineString {
	line := make(orb.LineString, len(points))
	for i, p := range points {
		line[i] = orb.Point{p.Lon, p.Lat}
	}
	return line
}
