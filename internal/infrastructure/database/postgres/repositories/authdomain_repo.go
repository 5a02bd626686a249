package repositories

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/webhookd/engine/internal/domain/authdomain"
	"github.com/webhookd/engine/internal/infrastructure/monitoring/logging"
	appErrors "github.com/webhookd/engine/pkg/errors"
	"github.com/webhookd/engine/pkg/types/common"
)

// AuthorizedDomainRepository is the PostgreSQL implementation of
// authdomain.Repository.
type AuthorizedDomainRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewAuthorizedDomainRepository constructs a ready-to-use AuthorizedDomainRepository.
func NewAuthorizedDomainRepository(pool *pgxpool.Pool, logger logging.Logger) *AuthorizedDomainRepository {
	return &AuthorizedDomainRepository{pool: pool, logger: logger}
}

const authorizedDomainColumns = `
	id, domain, verified, active, allowed_paths, require_https, expires_at,
	ip_whitelist, max_callbacks_per_minute, total_callbacks, total_failed,
	last_callback_at, created_at, updated_at, created_by, version`

// Save upserts an AuthorizedDomain under optimistic locking.
func (r *AuthorizedDomainRepository) Save(ctx context.Context, d *authdomain.AuthorizedDomain) error {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO authorized_domains (`+authorizedDomainColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (id) DO UPDATE SET
			domain=$2, verified=$3, active=$4, allowed_paths=$5, require_https=$6,
			expires_at=$7, ip_whitelist=$8, max_callbacks_per_minute=$9,
			total_callbacks=$10, total_failed=$11, last_callback_at=$12,
			updated_at=$14, version=$16
		WHERE authorized_domains.version = $16 - 1`,
		d.ID, d.Domain, d.Verified, d.Active, d.AllowedPaths, d.RequireHTTPS, d.ExpiresAt,
		d.IPWhitelist, d.MaxCallbacksPerMinute, d.TotalCallbacks, d.TotalFailed, d.LastCallbackAt,
		d.CreatedAt, d.UpdatedAt, d.CreatedBy, d.Version,
	)
	if err != nil {
		r.logger.Error("authdomain_repo: save failed", logging.Err(err), logging.String("id", string(d.ID)))
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to upsert authorized_domain")
	}
	if tag.RowsAffected() == 0 {
		return appErrors.New(appErrors.CodeConflict, "optimistic lock conflict on authorized_domain")
	}
	return nil
}

// FindByID loads an AuthorizedDomain by id.
func (r *AuthorizedDomainRepository) FindByID(ctx context.Context, id common.ID) (*authdomain.AuthorizedDomain, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+authorizedDomainColumns+` FROM authorized_domains WHERE id=$1`, id)
	return r.scan(row)
}

// FindByDomain looks up a domain by its canonical key, case-insensitively.
func (r *AuthorizedDomainRepository) FindByDomain(ctx context.Context, domain string) (*authdomain.AuthorizedDomain, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+authorizedDomainColumns+` FROM authorized_domains WHERE lower(domain)=lower($1)`, domain)
	return r.scan(row)
}

// Delete removes an AuthorizedDomain row.
func (r *AuthorizedDomainRepository) Delete(ctx context.Context, id common.ID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM authorized_domains WHERE id=$1`, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to delete authorized_domain")
	}
	if tag.RowsAffected() == 0 {
		return appErrors.Wrap(authdomain.ErrNotFound, appErrors.CodeNotFound, "authorized domain not found")
	}
	return nil
}

// List returns a page of all authorized domains for the admin surface.
func (r *AuthorizedDomainRepository) List(ctx context.Context, req common.PageRequest) (common.PageResponse[*authdomain.AuthorizedDomain], error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM authorized_domains`).Scan(&total); err != nil {
		return common.PageResponse[*authdomain.AuthorizedDomain]{}, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to count authorized_domains")
	}

	sortCol := sanitiseSortColumn(req.SortBy, authorizedDomainSortColumns)
	sortDir := "ASC"
	if strings.EqualFold(req.SortOrder, "desc") {
		sortDir = "DESC"
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+authorizedDomainColumns+` FROM authorized_domains ORDER BY `+sortCol+` `+sortDir+` LIMIT $1 OFFSET $2`,
		req.PageSize, req.Offset())
	if err != nil {
		return common.PageResponse[*authdomain.AuthorizedDomain]{}, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to list authorized_domains")
	}
	defer rows.Close()

	items, err := r.scanAll(rows)
	if err != nil {
		return common.PageResponse[*authdomain.AuthorizedDomain]{}, err
	}
	return common.NewPageResponse(items, total, req), nil
}

// RecordCallback performs the atomic per-domain counter bump without
// requiring the full aggregate to be reloaded.
func (r *AuthorizedDomainRepository) RecordCallback(ctx context.Context, domain string, success bool) error {
	failedDelta := 0
	if !success {
		failedDelta = 1
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE authorized_domains
		SET total_callbacks = total_callbacks + 1,
		    total_failed = total_failed + $2,
		    last_callback_at = now()
		WHERE lower(domain) = lower($1)`,
		domain, failedDelta)
	if err != nil {
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to record domain callback")
	}
	if tag.RowsAffected() == 0 {
		return appErrors.Wrap(authdomain.ErrNotFound, appErrors.CodeNotFound, "authorized domain not found")
	}
	return nil
}

var authorizedDomainSortColumns = map[string]string{
	"domain":     "domain",
	"created_at": "created_at",
	"updated_at": "updated_at",
	"active":     "active",
}

func (r *AuthorizedDomainRepository) scan(row pgx.Row) (*authdomain.AuthorizedDomain, error) {
	var d authdomain.AuthorizedDomain
	err := row.Scan(
		&d.ID, &d.Domain, &d.Verified, &d.Active, &d.AllowedPaths, &d.RequireHTTPS, &d.ExpiresAt,
		&d.IPWhitelist, &d.MaxCallbacksPerMinute, &d.TotalCallbacks, &d.TotalFailed, &d.LastCallbackAt,
		&d.CreatedAt, &d.UpdatedAt, &d.CreatedBy, &d.Version,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, appErrors.Wrap(authdomain.ErrNotFound, appErrors.CodeNotFound, "authorized domain not found")
		}
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to scan authorized_domain row")
	}
	return &d, nil
}

func (r *AuthorizedDomainRepository) scanAll(rows pgx.Rows) ([]*authdomain.AuthorizedDomain, error) {
	var out []*authdomain.AuthorizedDomain
	for rows.Next() {
		d, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed while iterating authorized_domain rows")
	}
	return out, nil
}
