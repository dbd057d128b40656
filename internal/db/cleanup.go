package db

import (
	"context"
	"time"

	"github.com/DMW2151/mta-buses/internal/models"
)

// DeleteObservationsBefore deletes observations whose service date is
// strictly before cutoff and returns the number of rows removed.
func (p *Postgres) DeleteObservationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM bus_locations WHERE start_date < $1`, models.CivilDate(cutoff))
	if err != nil {
		return 0, &StoreWriteError{Op: "delete observations", Err: err}
	}
	if n := tag.RowsAffected(); n > 0 {
		p.logger.Info("cleanup deleted observations", "rows", n, "before", cutoff.Format(models.DateLayout))
	}
	return tag.RowsAffected(), nil
}

// DeleteObservationsBefore deletes observations whose service date is
// strictly before cutoff and returns the number of rows removed.
func (s *SQLite) DeleteObservationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.conn.ExecContext(ctx, `DELETE FROM bus_locations WHERE start_date < ?`,
		models.CivilDate(cutoff).Format(models.DateLayout))
	if err != nil {
		return 0, &StoreWriteError{Op: "delete observations", Err: err}
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Info("cleanup deleted observations", "rows", n, "before", cutoff.Format(models.DateLayout))
	}
	return n, nil
}
