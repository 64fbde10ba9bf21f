package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/iliyamo/cinema-ebooking/internal/model"
)

var movieColumns = []string{
	"id", "title", "COALESCE(mpaa_rating, '')", "COALESCE(synopsis, '')",
	"COALESCE(trailer_video_url, '')", "COALESCE(trailer_image_url, '')",
}

// MovieRepo is the read-only movie catalogue.
type MovieRepo struct{ DB *sql.DB }

func NewMovieRepo(db *sql.DB) *MovieRepo { return &MovieRepo{DB: db} }

func scanMovie(row rowScanner) (model.Movie, error) {
	var m model.Movie
	err := row.Scan(&m.ID, &m.Title, &m.MPAARating, &m.Synopsis, &m.TrailerVideoURL, &m.TrailerImageURL)
	return m, err
}

func movieFilter(q string) sq.Sqlizer {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil
	}
	pattern := "%" + q + "%"
	return sq.Or{sq.Like{"title": pattern}, sq.Like{"synopsis": pattern}}
}

// Search returns one page of movies matching q in title or synopsis, ordered
// by id, together with the total number of matches.  page is 0-based.
func (r *MovieRepo) Search(ctx context.Context, q string, page, size int) ([]model.Movie, int64, error) {
	count := sq.Select("COUNT(*)").From("movies")
	list := sq.Select(movieColumns...).From("movies").OrderBy("id").
		Limit(uint64(size)).Offset(uint64(page * size))
	if f := movieFilter(q); f != nil {
		count = count.Where(f)
		list = list.Where(f)
	}

	query, args, err := count.ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := r.DB.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args, err = list.ToSql()
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []model.Movie{}
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

// GetByID returns a movie or ErrNotFound.
func (r *MovieRepo) GetByID(ctx context.Context, id uint64) (model.Movie, error) {
	query, args, err := sq.Select(movieColumns...).From("movies").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return model.Movie{}, err
	}
	m, err := scanMovie(r.DB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return m, ErrNotFound
	}
	return m, err
}
