package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	intdb "routeengine/internal/db"
	"routeengine/internal/domain/models"
	"routeengine/internal/utils"
)

const (
	DialectMySQL  = "mysql"
	DialectSQLite = "sqlite"
)

// SQLStore is the canonical store on MySQL or SQLite. Only the upsert clause differs.
type SQLStore struct {
	DB      *sql.DB
	Dialect string
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS stops (
		code VARCHAR(64) NOT NULL PRIMARY KEY,
		id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		city VARCHAR(255) NULL,
		lat DOUBLE NOT NULL,
		lng DOUBLE NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS routes (
		number VARCHAR(64) NOT NULL PRIMARY KEY,
		id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		starting_point VARCHAR(255) NOT NULL,
		ending_point VARCHAR(255) NOT NULL,
		total_distance_km DOUBLE NOT NULL DEFAULT 0,
		estimated_duration_min DOUBLE NOT NULL DEFAULT 0,
		base_fare DOUBLE NOT NULL DEFAULT 0,
		fare_per_km DOUBLE NOT NULL DEFAULT 0,
		departure_times TEXT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS route_stops (
		route_number VARCHAR(64) NOT NULL,
		stop_sequence INT NOT NULL,
		stop_code VARCHAR(64) NOT NULL,
		distance_from_start DOUBLE NULL,
		distance_from_prev DOUBLE NULL,
		segment_duration DOUBLE NULL,
		segment_fare DOUBLE NULL,
		fare_from_start DOUBLE NULL,
		arrival_min INT NULL,
		departure_min INT NULL,
		PRIMARY KEY (route_number, stop_sequence)
	)`,
}

// EnsureSchema creates the canonical tables when missing.
func (s SQLStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s SQLStore) upsertClause(key string, cols []string) string {
	parts := make([]string, 0, len(cols))
	if s.Dialect == DialectSQLite {
		for _, c := range cols {
			parts = append(parts, fmt.Sprintf("%s=excluded.%s", c, c))
		}
		return fmt.Sprintf(" ON CONFLICT(%s) DO UPDATE SET %s", key, strings.Join(parts, ", "))
	}
	for _, c := range cols {
		parts = append(parts, fmt.Sprintf("%s=VALUES(%s)", c, c))
	}
	return " ON DUPLICATE KEY UPDATE " + strings.Join(parts, ", ")
}

func (s SQLStore) UpsertStops(ctx context.Context, stops []models.Stop) error {
	if len(stops) == 0 {
		return nil
	}
	query := `INSERT INTO stops (code, id, name, city, lat, lng) VALUES (?, ?, ?, ?, ?, ?)` +
		s.upsertClause("code", []string{"id", "name", "city", "lat", "lng"})

	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, st := range stops {
			if _, err := stmt.ExecContext(ctx, st.Code, st.ID, st.Name, intdb.NullIfEmpty(st.City), st.Lat, st.Lng); err != nil {
				return fmt.Errorf("upsert stop %s: %w", st.Code, err)
			}
		}
		return nil
	})
}

func (s SQLStore) UpsertRoutes(ctx context.Context, routes []models.Route) error {
	if len(routes) == 0 {
		return nil
	}
	query := `INSERT INTO routes (number, id, name, starting_point, ending_point, total_distance_km,
		estimated_duration_min, base_fare, fare_per_km, departure_times) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)` +
		s.upsertClause("number", []string{"id", "name", "starting_point", "ending_point", "total_distance_km",
			"estimated_duration_min", "base_fare", "fare_per_km", "departure_times"})

	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range routes {
			if _, err := stmt.ExecContext(ctx, r.Number, r.ID, r.Name, r.StartingPoint, r.EndingPoint,
				r.TotalDistanceKm, r.EstimatedDurationMin, r.BaseFare, r.FarePerKm,
				intdb.NullIfEmpty(utils.FormatClockList(r.DepartureTimes))); err != nil {
				return fmt.Errorf("upsert route %s: %w", r.Number, err)
			}
		}
		return nil
	})
}

func (s SQLStore) ReplaceRouteStops(ctx context.Context, rows []models.RouteStop) error {
	if len(rows) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, number := range distinctRouteNumbers(rows) {
			if _, err := tx.ExecContext(ctx, `DELETE FROM route_stops WHERE route_number = ?`, number); err != nil {
				return fmt.Errorf("clear route %s: %w", number, err)
			}
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO route_stops (route_number, stop_sequence, stop_code,
			distance_from_start, distance_from_prev, segment_duration, segment_fare, fare_from_start,
			arrival_min, departure_min) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, r.RouteNumber, r.StopSequence, r.StopCode,
				intdb.NullFloat(r.DistanceFromStart), intdb.NullFloat(r.DistanceFromPrev),
				intdb.NullFloat(r.SegmentDuration), intdb.NullFloat(r.SegmentFare), intdb.NullFloat(r.FareFromStart),
				intdb.NullInt(r.ArrivalMin), intdb.NullInt(r.DepartureMin)); err != nil {
				return fmt.Errorf("insert route stop %s#%d: %w", r.RouteNumber, r.StopSequence, err)
			}
		}
		return nil
	})
}

func (s SQLStore) LoadDataset(ctx context.Context) (models.Dataset, error) {
	var ds models.Dataset

	rows, err := s.DB.QueryContext(ctx, `SELECT code, id, COALESCE(city,''), name, lat, lng FROM stops ORDER BY code`)
	if err != nil {
		return ds, fmt.Errorf("load stops: %w", err)
	}
	for rows.Next() {
		var st models.Stop
		if err := rows.Scan(&st.Code, &st.ID, &st.City, &st.Name, &st.Lat, &st.Lng); err != nil {
			rows.Close()
			return ds, fmt.Errorf("scan stop: %w", err)
		}
		ds.Stops = append(ds.Stops, st)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return ds, err
	}

	rows, err = s.DB.QueryContext(ctx, `SELECT number, id, name, starting_point, ending_point, total_distance_km,
		estimated_duration_min, base_fare, fare_per_km, COALESCE(departure_times,'') FROM routes ORDER BY number`)
	if err != nil {
		return ds, fmt.Errorf("load routes: %w", err)
	}
	for rows.Next() {
		var (
			r     models.Route
			times string
		)
		if err := rows.Scan(&r.Number, &r.ID, &r.Name, &r.StartingPoint, &r.EndingPoint, &r.TotalDistanceKm,
			&r.EstimatedDurationMin, &r.BaseFare, &r.FarePerKm, &times); err != nil {
			rows.Close()
			return ds, fmt.Errorf("scan route: %w", err)
		}
		if times != "" {
			parsed, perr := utils.ParseClockList(times)
			if perr != nil {
				rows.Close()
				return ds, fmt.Errorf("route %s departure_times: %w", r.Number, perr)
			}
			r.DepartureTimes = parsed
		}
		ds.Routes = append(ds.Routes, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return ds, err
	}

	rows, err = s.DB.QueryContext(ctx, `SELECT route_number, stop_sequence, stop_code, distance_from_start,
		distance_from_prev, segment_duration, segment_fare, fare_from_start, arrival_min, departure_min
		FROM route_stops ORDER BY route_number, stop_sequence`)
	if err != nil {
		return ds, fmt.Errorf("load route stops: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			rs                                       models.RouteStop
			fromStart, fromPrev, dur, fare, fareFrom sql.NullFloat64
			arr, dep                                 sql.NullInt64
		)
		if err := rows.Scan(&rs.RouteNumber, &rs.StopSequence, &rs.StopCode, &fromStart, &fromPrev, &dur,
			&fare, &fareFrom, &arr, &dep); err != nil {
			return ds, fmt.Errorf("scan route stop: %w", err)
		}
		rs.DistanceFromStart = intdb.FloatPtr(fromStart)
		rs.DistanceFromPrev = intdb.FloatPtr(fromPrev)
		rs.SegmentDuration = intdb.FloatPtr(dur)
		rs.SegmentFare = intdb.FloatPtr(fare)
		rs.FareFromStart = intdb.FloatPtr(fareFrom)
		rs.ArrivalMin = intdb.IntPtr(arr)
		rs.DepartureMin = intdb.IntPtr(dep)
		ds.RouteStops = append(ds.RouteStops, rs)
	}
	return ds, rows.Err()
}

func (s SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
