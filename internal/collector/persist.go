package collector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"scholarsync/pkg/models"
)

// deleteChunk bounds the IN (...) list of a stale-row delete so the
// statement stays under sqlite's bound-parameter limit.
const deleteChunk = 500

// UpsertResult reports what an upsert did to the row.
type UpsertResult int

const (
	Unchanged UpsertResult = iota
	Added
	Updated
)

// isConstraintErr reports whether err is a sqlite uniqueness violation,
// which happens when a concurrent worker lands the same activity first.
func isConstraintErr(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

// UpsertPublication inserts or refreshes one publication inside the
// subject's transaction, keyed by activityid. An existing row that already
// matches is left untouched; a differing row is overwritten whole.
func UpsertPublication(ctx context.Context, tx *sql.Tx, p *models.Publication) (UpsertResult, error) {
	existing, err := selectPublication(ctx, tx, p.ActivityID)
	if err != nil {
		return Unchanged, fmt.Errorf("select publication %d: %w", p.ActivityID, err)
	}

	if existing == nil {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO publications (
				user_id, activityid, type, title, journal, series_title, year,
				month_season, publisher, publisher_city_state, publisher_country,
				volume, issue_number, page_numbers, isbn, issn, doi, url,
				description, origin, status, term, status_year
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, p.UserID, p.ActivityID, p.Type, p.Title, p.Journal, p.SeriesTitle, p.Year,
			p.MonthSeason, p.Publisher, p.PublisherCityState, p.PublisherCountry,
			p.Volume, p.IssueNumber, p.PageNumbers, p.ISBN, p.ISSN, p.DOI, p.URL,
			p.Description, p.Origin, p.Status, p.Term, p.StatusYear)
		if err != nil {
			return Unchanged, err
		}
		return Added, nil
	}

	if *existing == *p {
		return Unchanged, nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE publications SET
			user_id = ?, type = ?, title = ?, journal = ?, series_title = ?,
			year = ?, month_season = ?, publisher = ?, publisher_city_state = ?,
			publisher_country = ?, volume = ?, issue_number = ?, page_numbers = ?,
			isbn = ?, issn = ?, doi = ?, url = ?, description = ?, origin = ?,
			status = ?, term = ?, status_year = ?
		WHERE activityid = ?
	`, p.UserID, p.Type, p.Title, p.Journal, p.SeriesTitle,
		p.Year, p.MonthSeason, p.Publisher, p.PublisherCityState,
		p.PublisherCountry, p.Volume, p.IssueNumber, p.PageNumbers,
		p.ISBN, p.ISSN, p.DOI, p.URL, p.Description, p.Origin,
		p.Status, p.Term, p.StatusYear, p.ActivityID)
	if err != nil {
		return Unchanged, fmt.Errorf("update publication %d: %w", p.ActivityID, err)
	}
	return Updated, nil
}

func selectPublication(ctx context.Context, tx *sql.Tx, activityID int64) (*models.Publication, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT user_id, activityid, type, title, journal, series_title, year,
		       month_season, publisher, publisher_city_state, publisher_country,
		       volume, issue_number, page_numbers, isbn, issn, doi, url,
		       description, origin, status, term, status_year
		FROM publications WHERE activityid = ?
	`, activityID)

	var p models.Publication
	var typ, title, journal, seriesTitle, year, monthSeason, publisher,
		publisherCityState, publisherCountry, volume, issueNumber, pageNumbers,
		isbn, issn, doi, pubURL, description, origin, status, term, statusYear sql.NullString

	err := row.Scan(&p.UserID, &p.ActivityID, &typ, &title, &journal, &seriesTitle,
		&year, &monthSeason, &publisher, &publisherCityState, &publisherCountry,
		&volume, &issueNumber, &pageNumbers, &isbn, &issn, &doi, &pubURL,
		&description, &origin, &status, &term, &statusYear)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
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
	return &p, nil
}

// UpsertGrant is the grant counterpart of UpsertPublication.
func UpsertGrant(ctx context.Context, tx *sql.Tx, g *models.Grant) (UpsertResult, error) {
	existing, err := selectGrant(ctx, tx, g.ActivityID)
	if err != nil {
		return Unchanged, fmt.Errorf("select grant %d: %w", g.ActivityID, err)
	}

	if existing == nil {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO grants (
				user_id, activityid, title, sponsor, grant_id, award_date,
				start_date, end_date, period_length, period_unit,
				indirect_funding, indirect_cost_rate, total_funding,
				total_direct_funding, currency_type, description, abstract,
				number_of_periods, url, status, term, status_year
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, g.UserID, g.ActivityID, g.Title, g.Sponsor, g.GrantID, g.AwardDate,
			g.StartDate, g.EndDate, g.PeriodLength, g.PeriodUnit,
			g.IndirectFunding, g.IndirectCostRate, g.TotalFunding,
			g.TotalDirectFunding, g.CurrencyType, g.Description, g.Abstract,
			g.NumberOfPeriods, g.URL, g.Status, g.Term, g.StatusYear)
		if err != nil {
			return Unchanged, err
		}
		return Added, nil
	}

	if *existing == *g {
		return Unchanged, nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE grants SET
			user_id = ?, title = ?, sponsor = ?, grant_id = ?, award_date = ?,
			start_date = ?, end_date = ?, period_length = ?, period_unit = ?,
			indirect_funding = ?, indirect_cost_rate = ?, total_funding = ?,
			total_direct_funding = ?, currency_type = ?, description = ?,
			abstract = ?, number_of_periods = ?, url = ?, status = ?, term = ?,
			status_year = ?
		WHERE activityid = ?
	`, g.UserID, g.Title, g.Sponsor, g.GrantID, g.AwardDate,
		g.StartDate, g.EndDate, g.PeriodLength, g.PeriodUnit,
		g.IndirectFunding, g.IndirectCostRate, g.TotalFunding,
		g.TotalDirectFunding, g.CurrencyType, g.Description,
		g.Abstract, g.NumberOfPeriods, g.URL, g.Status, g.Term,
		g.StatusYear, g.ActivityID)
	if err != nil {
		return Unchanged, fmt.Errorf("update grant %d: %w", g.ActivityID, err)
	}
	return Updated, nil
}

func selectGrant(ctx context.Context, tx *sql.Tx, activityID int64) (*models.Grant, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT user_id, activityid, title, sponsor, grant_id, award_date,
		       start_date, end_date, period_length, period_unit,
		       indirect_funding, indirect_cost_rate, total_funding,
		       total_direct_funding, currency_type, description, abstract,
		       number_of_periods, url, status, term, status_year
		FROM grants WHERE activityid = ?
	`, activityID)

	var g models.Grant
	var title, sponsor, grantID, awardDate, startDate, endDate, periodLength,
		periodUnit, indirectFunding, indirectCostRate, totalFunding,
		totalDirectFunding, currencyType, description, abstract,
		numberOfPeriods, grantURL, status, term, statusYear sql.NullString

	err := row.Scan(&g.UserID, &g.ActivityID, &title, &sponsor, &grantID,
		&awardDate, &startDate, &endDate, &periodLength, &periodUnit,
		&indirectFunding, &indirectCostRate, &totalFunding, &totalDirectFunding,
		&currencyType, &description, &abstract, &numberOfPeriods, &grantURL,
		&status, &term, &statusYear)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
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
	return &g, nil
}

// ExistingPublicationIDs lists every stored publication activityid.
func ExistingPublicationIDs(ctx context.Context, db *sql.DB) ([]int64, error) {
	return queryIDs(ctx, db, `SELECT activityid FROM publications ORDER BY activityid`)
}

// ExistingGrantIDs lists every stored grant activityid.
func ExistingGrantIDs(ctx context.Context, db *sql.DB) ([]int64, error) {
	return queryIDs(ctx, db, `SELECT activityid FROM grants ORDER BY activityid`)
}

func queryIDs(ctx context.Context, db *sql.DB, query string) ([]int64, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeletePublications removes the given activityids and reports how many
// rows went away.
func DeletePublications(ctx context.Context, db *sql.DB, ids []int64) (int64, error) {
	return deleteByActivityID(ctx, db, "publications", ids)
}

// DeleteGrants removes the given grant activityids.
func DeleteGrants(ctx context.Context, db *sql.DB, ids []int64) (int64, error) {
	return deleteByActivityID(ctx, db, "grants", ids)
}

func deleteByActivityID(ctx context.Context, db *sql.DB, table string, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete tx: %w", err)
	}
	defer tx.Rollback()

	var total int64
	for start := 0; start < len(ids); start += deleteChunk {
		end := min(start+deleteChunk, len(ids))
		chunk := ids[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		res, err := tx.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE activityid IN (`+placeholders+`)`, args...)
		if err != nil {
			return 0, fmt.Errorf("delete stale %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete tx: %w", err)
	}
	return total, nil
}
