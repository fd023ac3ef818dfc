package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"curbcast/pkg/db"
	"curbcast/pkg/model"
)

// timeFormat is how timestamps are persisted. RFC3339 in UTC compares
// lexicographically, which the expiry filters rely on.
const timeFormat = time.RFC3339

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(d *db.DB) *SQLiteStore {
	return &SQLiteStore{db: d}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Spots ---

func (s *SQLiteStore) ListSpots(ctx context.Context) ([]model.Spot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT spot_id, lat, lng, street_name, neighborhood, time_limit, hours, days,
		        permit_zone, sweeping_schedule, curb_color, confidence_score, data_sources, zone_id
		 FROM free_parking_spots
		 WHERE lat IS NOT NULL AND lng IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("list spots: %w", err)
	}
	defer rows.Close()

	var spots []model.Spot
	for rows.Next() {
		var sp model.Spot
		var street, nbhd, limit, hours, days, permit, sweep, curb, sources, zone sql.NullString
		var conf sql.NullFloat64
		if err := rows.Scan(&sp.SpotID, &sp.Lat, &sp.Lng, &street, &nbhd, &limit, &hours, &days,
			&permit, &sweep, &curb, &conf, &sources, &zone); err != nil {
			return nil, err
		}
		sp.StreetName = street.String
		sp.Neighborhood = nbhd.String
		sp.TimeLimit = limit.String
		sp.Hours = hours.String
		sp.Days = days.String
		sp.PermitZone = permit.String
		sp.SweepingSchedule = sweep.String
		sp.CurbColor = curb.String
		sp.ConfidenceScore = conf.Float64
		sp.DataSources = sources.String
		sp.ZoneID = zone.String
		spots = append(spots, sp)
	}
	return spots, rows.Err()
}

// --- Meters ---

func (s *SQLiteStore) ListMeters(ctx context.Context) ([]model.Meter, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT post_id, lat, lng, corridor FROM parking_meters WHERE lat IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("list meters: %w", err)
	}
	defer rows.Close()

	var meters []model.Meter
	for rows.Next() {
		var m model.Meter
		var corridor sql.NullString
		if err := rows.Scan(&m.PostID, &m.Lat, &m.Lng, &corridor); err != nil {
			return nil, err
		}
		m.Corridor = corridor.String
		meters = append(meters, m)
	}
	return meters, rows.Err()
}

// --- Hourly patterns ---

func (s *SQLiteStore) GetPattern(ctx context.Context, postID string, dow, hour, month int) (*model.HourlyPattern, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT occupancy_rate, avg_duration, turnover_rate, sample_count
		 FROM meter_occupancy_hourly
		 WHERE meter_post_id = ? AND day_of_week = ? AND hour = ? AND month = ?`,
		postID, dow, hour, month)

	p := model.HourlyPattern{MeterPostID: postID, DayOfWeek: dow, Hour: hour, Month: month}
	var avgDur, turnover sql.NullFloat64
	err := row.Scan(&p.OccupancyRate, &avgDur, &turnover, &p.SampleCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}
	p.AvgDuration = avgDur.Float64
	p.TurnoverRate = turnover.Float64
	return &p, nil
}

// --- Signals ---

func (s *SQLiteStore) LatestSignal(ctx context.Context, kind, neighborhood string, now time.Time) (*model.Signal, error) {
	q := `SELECT signal_id, signal_type, lat, lng, neighborhood, value_json, fetched_at, expires_at
	      FROM realtime_signals
	      WHERE signal_type = ? AND expires_at > ?`
	args := []any{kind, now.UTC().Format(timeFormat)}
	if neighborhood != "" {
		q += ` AND neighborhood = ?`
		args = append(args, neighborhood)
	}
	q += ` ORDER BY fetched_at DESC LIMIT 1`

	row := s.db.QueryRowContext(ctx, q, args...)

	var sig model.Signal
	var lat, lng sql.NullFloat64
	var nbhd sql.NullString
	var fetched, expires string
	err := row.Scan(&sig.SignalID, &sig.Kind, &lat, &lng, &nbhd, &sig.ValueJSON, &fetched, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sig.Lat = lat.Float64
	sig.Lng = lng.Float64
	sig.Neighborhood = nbhd.String
	if sig.FetchedAt, err = time.Parse(timeFormat, fetched); err != nil {
		return nil, fmt.Errorf("bad fetched_at %q: %w", fetched, err)
	}
	if sig.ExpiresAt, err = time.Parse(timeFormat, expires); err != nil {
		return nil, fmt.Errorf("bad expires_at %q: %w", expires, err)
	}
	return &sig, nil
}

func (s *SQLiteStore) InsertSignal(ctx context.Context, sig *model.Signal) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO realtime_signals (signal_type, lat, lng, neighborhood, value_json, fetched_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sig.Kind, sig.Lat, sig.Lng, sig.Neighborhood, sig.ValueJSON,
		sig.FetchedAt.UTC().Format(timeFormat), sig.ExpiresAt.UTC().Format(timeFormat))
	return err
}

// --- Garages ---

func (s *SQLiteStore) ListGarages(ctx context.Context) ([]model.Garage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT g.garage_id, g.name, g.lat, g.lng, g.total_spaces, g.hourly_rate, g.source,
		        ga.available_spaces
		 FROM garages g
		 LEFT JOIN garage_availability ga ON ga.garage_id = g.garage_id
		   AND ga.timestamp = (SELECT MAX(timestamp) FROM garage_availability WHERE garage_id = g.garage_id)
		 WHERE g.lat IS NOT NULL AND g.lng IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("list garages: %w", err)
	}
	defer rows.Close()

	var garages []model.Garage
	for rows.Next() {
		var g model.Garage
		var name, source sql.NullString
		var total, avail sql.NullInt64
		var rate sql.NullFloat64
		if err := rows.Scan(&g.GarageID, &name, &g.Lat, &g.Lng, &total, &rate, &source, &avail); err != nil {
			return nil, err
		}
		g.Name = name.String
		g.TotalSpaces = int(total.Int64)
		g.HourlyRate = rate.Float64
		g.Source = source.String
		g.AvailableSpaces = int(avail.Int64)
		g.HasAvailability = avail.Valid
		garages = append(garages, g)
	}
	return garages, rows.Err()
}

func (s *SQLiteStore) UpsertGarage(ctx context.Context, g *model.Garage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO garages (garage_id, name, lat, lng, total_spaces, hourly_rate, source)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.GarageID, g.Name, g.Lat, g.Lng, g.TotalSpaces, g.HourlyRate, g.Source)
	return err
}

func (s *SQLiteStore) InsertAvailability(ctx context.Context, garageID string, ts time.Time, available int) error {
	_, err := s.db.InsertOrIgnore("garage_availability",
		[]string{"garage_id", "timestamp", "available_spaces"},
		garageID, ts.UTC().Format(timeFormat), available)
	return err
}

// --- Crowd reports ---

func (s *SQLiteStore) InsertReport(ctx context.Context, r *model.CrowdReport) (int64, error) {
	var spotID any
	if r.SpotID != 0 {
		spotID = r.SpotID
	}
	return s.db.InsertReturningID("crowd_reports",
		[]string{"user_id", "spot_id", "lat", "lng", "report_type", "reported_at", "confidence"},
		r.UserID, spotID, r.Lat, r.Lng, r.ReportType,
		r.ReportedAt.UTC().Format(timeFormat), r.Confidence)
}

// --- Zone overrides ---

func (s *SQLiteStore) GetZoneOverride(ctx context.Context, spotID int64) (string, bool, error) {
	var zone string
	err := s.db.QueryRowContext(ctx,
		`SELECT zone_type FROM zone_classifications WHERE spot_id = ?`, spotID).Scan(&zone)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return zone, true, nil
}

// --- Sweeping ---

func (s *SQLiteStore) RulesForStreet(ctx context.Context, street string) ([]model.SweepingRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT corridor, side, weekday, week_of_month, start_time, end_time
		 FROM street_sweeping WHERE corridor LIKE ? LIMIT 20`,
		"%"+street+"%")
	if err != nil {
		return nil, fmt.Errorf("sweeping rules: %w", err)
	}
	defer rows.Close()

	var rules []model.SweepingRule
	for rows.Next() {
		var r model.SweepingRule
		var corridor, side, weekday, week, start, end sql.NullString
		if err := rows.Scan(&corridor, &side, &weekday, &week, &start, &end); err != nil {
			return nil, err
		}
		r.Corridor = corridor.String
		r.Side = side.String
		r.Weekday = weekday.String
		r.WeekOfMonth = week.String
		r.StartTime = start.String
		r.EndTime = end.String
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// --- Signs and regulations ---

func (s *SQLiteStore) SignsInBox(ctx context.Context, minLat, maxLat, minLng, maxLng float64) ([]model.SignFeature, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT object_value, lat, lng FROM mapillary_sign_features
		 WHERE lat BETWEEN ? AND ? AND lng BETWEEN ? AND ?`,
		minLat, maxLat, minLng, maxLng)
	if err != nil {
		return nil, fmt.Errorf("signs in box: %w", err)
	}
	defer rows.Close()

	var signs []model.SignFeature
	for rows.Next() {
		var sf model.SignFeature
		var val sql.NullString
		var lat, lng sql.NullFloat64
		if err := rows.Scan(&val, &lat, &lng); err != nil {
			return nil, err
		}
		if !lat.Valid || !lng.Valid {
			continue
		}
		sf.ObjectValue = val.String
		sf.Lat = lat.Float64
		sf.Lng = lng.Float64
		signs = append(signs, sf)
	}
	return signs, rows.Err()
}

func (s *SQLiteStore) RegulationsInBox(ctx context.Context, minLat, maxLat, minLng, maxLng float64) ([]model.Regulation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT regulation, time_limit, lat, lng FROM parking_regulations
		 WHERE lat BETWEEN ? AND ? AND lng BETWEEN ? AND ?`,
		minLat, maxLat, minLng, maxLng)
	if err != nil {
		return nil, fmt.Errorf("regulations in box: %w", err)
	}
	defer rows.Close()

	var regs []model.Regulation
	for rows.Next() {
		var r model.Regulation
		var reg, limit sql.NullString
		var lat, lng sql.NullFloat64
		if err := rows.Scan(&reg, &limit, &lat, &lng); err != nil {
			return nil, err
		}
		r.Regulation = reg.String
		r.TimeLimit = limit.String
		r.Lat = lat.Float64
		r.Lng = lng.Float64
		regs = append(regs, r)
	}
	return regs, rows.Err()
}
