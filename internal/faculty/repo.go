package faculty

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"scholarsync/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

type ListQuery struct {
	Q      string // keyword search in name/email
	Unit   int64  // primaryunit filter, 0 means any
	Status string // employmentstatus filter
	Limit  int
	Offset int
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

const facultyColumns = `
	id, email, firstname, lastname, middlename, employmentstatus,
	position, primaryunit, orcid, rank, url, lastlogin, pid
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFaculty(row rowScanner) (*models.Faculty, error) {
	var (
		f                                      models.Faculty
		email, firstname, lastname, middlename sql.NullString
		employmentstatus, position             sql.NullString
		primaryunit                            sql.NullInt64
		orcid, rank, url, lastlogin            sql.NullString
		pid                                    sql.NullInt64
	)

	if err := row.Scan(
		&f.ID, &email, &firstname, &lastname, &middlename, &employmentstatus,
		&position, &primaryunit, &orcid, &rank, &url, &lastlogin, &pid,
	); err != nil {
		return nil, err
	}

	f.Email = email.String
	f.FirstName = firstname.String
	f.LastName = lastname.String
	f.MiddleName = middlename.String
	f.EmploymentStatus = employmentstatus.String
	f.Position = position.String
	f.PrimaryUnit = primaryunit.Int64
	f.ORCID = orcid.String
	f.Rank = rank.String
	f.URL = url.String
	f.LastLogin = lastlogin.String
	f.PID = pid.Int64
	return &f, nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*models.Faculty, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+facultyColumns+` FROM faculty WHERE id = ?
	`, id)

	f, err := scanFaculty(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan faculty: %w", err)
	}
	return f, nil
}

func (r *Repo) Count(ctx context.Context, q ListQuery) (int, error) {
	sqlStr, args := buildListSQL(q, true)
	var total int
	if err := r.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count scan: %w", err)
	}
	return total, nil
}

func (r *Repo) List(ctx context.Context, q ListQuery) ([]models.Faculty, error) {
	sqlStr, args := buildListSQL(q, false)

	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	out := make([]models.Faculty, 0, q.Limit)
	for rows.Next() {
		f, err := scanFaculty(rows)
		if err != nil {
			return nil, fmt.Errorf("list scan: %w", err)
		}
		out = append(out, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// buildListSQL builds either the COUNT(*) or the paged SELECT.
func buildListSQL(q ListQuery, countOnly bool) (string, []any) {
	baseSelect := `SELECT ` + facultyColumns + ` FROM faculty`
	if countOnly {
		baseSelect = `SELECT COUNT(*) FROM faculty`
	}

	var where []string
	var args []any

	if strings.TrimSpace(q.Q) != "" {
		where = append(where, "(LOWER(firstname) LIKE ? OR LOWER(lastname) LIKE ? OR LOWER(email) LIKE ?)")
		kw := "%" + strings.ToLower(strings.TrimSpace(q.Q)) + "%"
		args = append(args, kw, kw, kw)
	}

	if q.Unit > 0 {
		where = append(where, "primaryunit = ?")
		args = append(args, q.Unit)
	}

	if strings.TrimSpace(q.Status) != "" {
		where = append(where, "LOWER(employmentstatus) = ?")
		args = append(args, strings.ToLower(strings.TrimSpace(q.Status)))
	}

	sqlStr := baseSelect
	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}

	if !countOnly {
		sqlStr += " ORDER BY lastname ASC, firstname ASC"
		sqlStr += " LIMIT ? OFFSET ?"
		limit := q.Limit
		if limit <= 0 || limit > 100 {
			limit = 20
		}
		offset := q.Offset
		if offset < 0 {
			offset = 0
		}
		args = append(args, limit, offset)
	}

	return sqlStr, args
}

// SaveRoster upserts the remote user roster in one transaction, so a
// half-failed import never leaves a partial roster behind.
func (r *Repo) SaveRoster(ctx context.Context, roster []models.Faculty) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO faculty (id, email, firstname, lastname, middlename,
		                     employmentstatus, position, primaryunit, orcid,
		                     rank, url, lastlogin, pid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		  email = excluded.email,
		  firstname = excluded.firstname,
		  lastname = excluded.lastname,
		  middlename = excluded.middlename,
		  employmentstatus = excluded.employmentstatus,
		  position = excluded.position,
		  primaryunit = excluded.primaryunit,
		  orcid = excluded.orcid,
		  rank = excluded.rank,
		  url = excluded.url,
		  lastlogin = excluded.lastlogin,
		  pid = excluded.pid
	`)
	if err != nil {
		return fmt.Errorf("prepare roster stmt: %w", err)
	}
	defer stmt.Close()

	for _, f := range roster {
		if _, err := stmt.ExecContext(ctx, f.ID, f.Email, f.FirstName, f.LastName,
			f.MiddleName, f.EmploymentStatus, f.Position, f.PrimaryUnit, f.ORCID,
			f.Rank, f.URL, f.LastLogin, f.PID); err != nil {
			return fmt.Errorf("upsert faculty %s: %w", f.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// PublicationsFor lists one faculty member's stored publications.
func (r *Repo) PublicationsFor(ctx context.Context, userID string) ([]models.Publication, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT user_id, activityid, type, title, journal, series_title, year,
		       month_season, publisher, publisher_city_state, publisher_country,
		       volume, issue_number, page_numbers, isbn, issn, doi, url,
		       description, origin, status, term, status_year
		FROM publications
		WHERE user_id = ?
		ORDER BY year DESC, title ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("publications query: %w", err)
	}
	defer rows.Close()

	out := []models.Publication{}
	for rows.Next() {
		var p models.Publication
		var typ, title, journal, seriesTitle, year, monthSeason, publisher,
			publisherCityState, publisherCountry, volume, issueNumber, pageNumbers,
			isbn, issn, doi, pubURL, description, origin, status, term, statusYear sql.NullString

		if err := rows.Scan(&p.UserID, &p.ActivityID, &typ, &title, &journal,
			&seriesTitle, &year, &monthSeason, &publisher, &publisherCityState,
			&publisherCountry, &volume, &issueNumber, &pageNumbers, &isbn, &issn,
			&doi, &pubURL, &description, &origin, &status, &term, &statusYear); err != nil {
			return nil, fmt.Errorf("publications scan: %w", err)
		}

		p.Type = typ.String
		p.Title = title.String
		p.Journal = journal.String
		p.SeriesTitle = seriesTitle.String
		p.Year = year.String
		p.MonthSeason = monthSeason.String
		p.Publisher = publisher.String
		p.PublisherCityState = publisherCityState.String
		p.PublisherCountry = publisherCountry.String
		p.Volume = volume.String
		p.IssueNumber = issueNumber.String
		p.PageNumbers = pageNumbers.String
		p.ISBN = isbn.String
		p.ISSN = issn.String
		p.DOI = doi.String
		p.URL = pubURL.String
		p.Description = description.String
		p.Origin = origin.String
		p.Status = status.String
		p.Term = term.String
		p.StatusYear = statusYear.String
		out = append(out, p)
	}
	return out, rows.Err()
}

// GrantsFor lists one faculty member's stored grants.
func (r *Repo) GrantsFor(ctx context.Context, userID string) ([]models.Grant, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT user_id, activityid, title, sponsor, grant_id, award_date,
		       start_date, end_date, period_length, period_unit,
		       indirect_funding, indirect_cost_rate, total_funding,
		       total_direct_funding, currency_type, description, abstract,
		       number_of_periods, url, status, term, status_year
		FROM grants
		WHERE user_id = ?
		ORDER BY title ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("grants query: %w", err)
	}
	defer rows.Close()

	out := []models.Grant{}
	for rows.Next() {
		var g models.Grant
		var title, sponsor, grantID, awardDate, startDate, endDate, periodLength,
			periodUnit, indirectFunding, indirectCostRate, totalFunding,
			totalDirectFunding, currencyType, description, abstract,
			numberOfPeriods, grantURL, status, term, statusYear sql.NullString

		if err := rows.Scan(&g.UserID, &g.ActivityID, &title, &sponsor, &grantID,
			&awardDate, &startDate, &endDate, &periodLength, &periodUnit,
			&indirectFunding, &indirectCostRate, &totalFunding, &totalDirectFunding,
			&currencyType, &description, &abstract, &numberOfPeriods, &grantURL,
			&status, &term, &statusYear); err != nil {
			return nil, fmt.Errorf("grants scan: %w", err)
		}

		g.Title = title.String
		g.Sponsor = sponsor.String
		g.GrantID = grantID.String
		g.AwardDate = awardDate.String
		g.StartDate = startDate.String
		g.EndDate = endDate.String
		g.PeriodLength = periodLength.String
		g.PeriodUnit = periodUnit.String
		g.IndirectFunding = indirectFunding.String
		g.IndirectCostRate = indirectCostRate.String
		g.TotalFunding = totalFunding.String
		g.TotalDirectFunding = totalDirectFunding.String
		g.CurrencyType = currencyType.String
		g.Description = description.String
		g.Abstract = abstract.String
		g.NumberOfPeriods = numberOfPeriods.String
		g.URL = grantURL.String
		g.Status = status.String
		g.Term = term.String
		g.StatusYear = statusYear.String
		out = append(out, g)
	}
	return out, rows.Err()
}
