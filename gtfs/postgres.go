package gtfs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	_ "github.com/jackc/pgx/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/transitlive/transitlive/config"
)

// Open knows how to open a schedule database connection based on the
// configuration.
func Open(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	sslMode := "require"
	if cfg.DisableTLS {
		sslMode = "disable"
	}

	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host,
		Path:     cfg.Name,
		RawQuery: q.Encode(),
	}
	return sqlx.Connect("pgx", u.String())
}

// PostgresStore implements Store over the Postgres schedule database.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an open schedule database.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *PostgresStore) AgencyByID(ctx context.Context, agencyID string) (*Agency, error) {
	var a Agency
	err := s.db.GetContext(ctx, &a,
		"select agency_id, agency_name, agency_url, agency_timezone, agency_lang, agency_phone, agency_fare_url "+
			"from agency where agency_id = $1", agencyID)
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (s *PostgresStore) RouteByID(ctx context.Context, routeID string) (*Route, error) {
	var r Route
	err := s.db.GetContext(ctx, &r,
		"select route_id, agency_id, route_short_name, route_long_name, route_desc, route_type, route_color "+
			"from routes where route_id = $1", routeID)
	if err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func (s *PostgresStore) RoutesByShortName(ctx context.Context, agencyID, shortName string) ([]*Route, error) {
	routes := []*Route{}
	err := s.db.SelectContext(ctx, &routes,
		"select route_id, agency_id, route_short_name, route_long_name, route_desc, route_type, route_color "+
			"from routes where agency_id = $1 and route_short_name = $2 order by route_id", agencyID, shortName)
	if err != nil {
		return nil, err
	}
	return routes, nil
}

func (s *PostgresStore) CountRouteLicenses(ctx context.Context, agencyID string) (int, error) {
	var count int
	// route_desc holds the official license number as its first
	// "-"-separated segment.
	err := s.db.GetContext(ctx, &count,
		"select count(distinct split_part(route_desc, '-', 1)) from routes where agency_id = $1", agencyID)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *PostgresStore) TripByID(ctx context.Context, tripID string) (*Trip, error) {
	var t Trip
	err := s.db.GetContext(ctx, &t,
		"select trip_id, route_id, service_id, trip_headsign, direction_id, shape_id, wheelchair_accessible "+
			"from trips where trip_id = $1", tripID)
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (s *PostgresStore) TripsByRoute(ctx context.Context, routeID string, directionID *int) ([]*Trip, error) {
	trips := []*Trip{}
	statement := "select trip_id, route_id, service_id, trip_headsign, direction_id, shape_id, wheelchair_accessible " +
		"from trips where route_id = $1"
	args := []any{routeID}
	if directionID != nil {
		statement += " and direction_id = $2"
		args = append(args, *directionID)
	}
	if err := s.db.SelectContext(ctx, &trips, statement, args...); err != nil {
		return nil, err
	}
	return trips, nil
}

func (s *PostgresStore) StopTimesByTrip(ctx context.Context, tripID string) ([]*StopTime, error) {
	stopTimes := []*StopTime{}
	err := s.db.SelectContext(ctx, &stopTimes,
		"select trip_id, arrival_time, departure_time, stop_id, stop_sequence, pickup_type, drop_off_type, shape_dist_traveled "+
			"from stoptimes where trip_id = $1 order by stop_sequence", tripID)
	if err != nil {
		return nil, err
	}
	return stopTimes, nil
}

func (s *PostgresStore) LastStopCodeForTrip(ctx context.Context, tripID string) (string, error) {
	var code string
	err := s.db.GetContext(ctx, &code,
		"select s.stop_code from stoptimes as st "+
			"join stops as s on s.stop_id = st.stop_id "+
			"where st.trip_id = $1 order by st.stop_sequence desc limit 1", tripID)
	if err != nil {
		return "", notFound(err)
	}
	return code, nil
}

func (s *PostgresStore) RouteInfoForTrips(ctx context.Context, tripIDs []string) (map[string]TripRouteInfo, error) {
	result := map[string]TripRouteInfo{}
	if len(tripIDs) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In(
		"select t.trip_id, t.direction_id::text as direction_id, r.route_id, r.route_short_name, r.route_long_name, r.agency_id "+
			"from trips as t join routes as r on r.route_id = t.route_id where t.trip_id in (?)", tripIDs)
	if err != nil {
		return nil, fmt.Errorf("building trip info query: %w", err)
	}
	query = s.db.Rebind(query)
	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var info TripRouteInfo
		if err := rows.StructScan(&info); err != nil {
			return nil, err
		}
		code, err := s.LastStopCodeForTrip(ctx, info.TripID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		info.DestinationCode = code
		result[info.TripID] = info
	}
	return result, rows.Err()
}

func (s *PostgresStore) StopByID(ctx context.Context, stopID string) (*Stop, error) {
	return s.stopWhere(ctx, "stop_id = $1", stopID)
}

func (s *PostgresStore) StopByCode(ctx context.Context, stopCode string) (*Stop, error) {
	return s.stopWhere(ctx, "stop_code = $1", stopCode)
}

func (s *PostgresStore) StopByName(ctx context.Context, name string) (*Stop, error) {
	return s.stopWhere(ctx, "stop_name = $1", name)
}

func (s *PostgresStore) StopAtLocation(ctx context.Context, lat, lon float64) (*Stop, error) {
	return s.stopWhere(ctx, "stop_lat = $1 and stop_lon = $2", lat, lon)
}

const stopColumns = "stop_id, stop_code, stop_name, stop_desc, stop_lat, stop_lon, location_type, parent_station, zone_id"

func (s *PostgresStore) stopWhere(ctx context.Context, where string, args ...any) (*Stop, error) {
	var st Stop
	err := s.db.GetContext(ctx, &st,
		"select "+stopColumns+" from stops where "+where+" limit 1", args...)
	if err != nil {
		return nil, notFound(err)
	}
	return &st, nil
}

func (s *PostgresStore) StopsInBox(ctx context.Context, north, south, east, west float64) ([]*Stop, error) {
	stops := []*Stop{}
	err := s.db.SelectContext(ctx, &stops,
		"select "+stopColumns+" from stops "+
			"where stop_lat < $1 and stop_lat > $2 and stop_lon < $3 and stop_lon > $4",
		north, south, east, west)
	if err != nil {
		return nil, err
	}
	return stops, nil
}

func (s *PostgresStore) Translations(ctx context.Context, source string) (map[string]string, error) {
	rows := []Translation{}
	err := s.db.SelectContext(ctx, &rows,
		"select trans_id, lang, translation from translations where trans_id in ($1, $2)",
		source, NormalizeQuotes(source))
	if err != nil {
		return nil, err
	}
	result := make(map[string]string, len(rows))
	for _, t := range rows {
		result[t.Lang] = t.Translation
	}
	return result, nil
}

func (s *PostgresStore) Translation(ctx context.Context, source, lang string) (string, error) {
	var translated string
	err := s.db.GetContext(ctx, &translated,
		"select translation from translations where trans_id in ($1, $2) and lang = $3 limit 1",
		source, NormalizeQuotes(source), lang)
	if err != nil {
		return "", notFound(err)
	}
	return translated, nil
}

func (s *PostgresStore) CityByName(ctx context.Context, name string) (*City, error) {
	var c City
	err := s.db.GetContext(ctx, &c,
		"select name, english_name from cities where name = $1", name)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *PostgresStore) MappedStopCodes(ctx context.Context, feedStopIDs []string) (map[string]string, error) {
	result := map[string]string{}
	if len(feedStopIDs) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In(
		"select m.feed_stop_id, s.stop_code from feed_stops as m "+
			"join stops as s on s.stop_id = m.stop_id where m.feed_stop_id in (?)", feedStopIDs)
	if err != nil {
		return nil, fmt.Errorf("building stop mapping query: %w", err)
	}
	query = s.db.Rebind(query)
	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var feedStopID, stopCode string
		if err := rows.Scan(&feedStopID, &stopCode); err != nil {
			return nil, err
		}
		result[feedStopID] = stopCode
	}
	return result, rows.Err()
}
