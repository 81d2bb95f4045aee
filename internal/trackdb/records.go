package trackdb

import (
	"context"
	"fmt"
	"time"

	"tracker.junat.live/internal/clock"
	"tracker.junat.live/internal/models"
	"tracker.junat.live/internal/store"
)

// Load reads every persisted record.
func (c *Client) Load(ctx context.Context) (store.TrackedTrains, error) {
	return c.LoadSince(ctx, "")
}

// LoadSince reads the persisted records departing on or after date
// (YYYY-MM-DD).
func (c *Client) LoadSince(ctx context.Context, date string) (store.TrackedTrains, error) {
	rows, err := c.DB.QueryContext(ctx,
		`SELECT journey_number, departure_date FROM tracked_trains WHERE departure_date >= ?`, date)
	if err != nil {
		return nil, fmt.Errorf("query tracked trains: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(store.TrackedTrains)
	for rows.Next() {
		var (
			number int
			date   string
		)
		if err := rows.Scan(&number, &date); err != nil {
			return nil, fmt.Errorf("scan tracked train: %w", err)
		}
		out[number] = models.TrackedTrain{DepartureDate: date}
	}
	return out, rows.Err()
}

// Insert stores rec unless a record for number exists that may still
// belong to the same journey, i.e. one departing no earlier than the day
// before rec. Older rows are replaced. It reports whether a row was written.
func (c *Client) Insert(ctx context.Context, number int, rec models.TrackedTrain, at time.Time) (bool, error) {
	staleBefore, err := clock.DayBefore(rec.DepartureDate)
	if err != nil {
		return false, fmt.Errorf("insert tracked train %d: invalid departure date %q: %w", number, rec.DepartureDate, err)
	}
	res, err := c.DB.ExecContext(ctx,
		`INSERT INTO tracked_trains (journey_number, departure_date, recorded_at) VALUES (?, ?, ?)
		ON CONFLICT (journey_number) DO UPDATE
		SET departure_date = excluded.departure_date, recorded_at = excluded.recorded_at
		WHERE tracked_trains.departure_date < ?`,
		number, rec.DepartureDate, at.UnixMilli(), staleBefore)
	if err != nil {
		return false, fmt.Errorf("insert tracked train %d: %w", number, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteBefore removes records whose departure date is before date
// (YYYY-MM-DD) and returns how many were removed.
func (c *Client) DeleteBefore(ctx context.Context, date string) (int64, error) {
	res, err := c.DB.ExecContext(ctx, `DELETE FROM tracked_trains WHERE departure_date < ?`, date)
	if err != nil {
		return 0, fmt.Errorf("delete tracked trains before %s: %w", date, err)
	}
	return res.RowsAffected()
}
