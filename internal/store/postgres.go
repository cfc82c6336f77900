package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flagforge/flagforge/internal/model"
)

// PostgresStore is a PostgreSQL implementation of Store. Queries are
// hand-written against schema.sql rather than generated, since no query
// generator output travels with this codebase.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

func mapPgError(err error, notFoundMsg string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return model.NewNotFoundError(notFoundMsg)
	}
	return err
}

// --- Environments ---

func (p *PostgresStore) CreateEnvironment(ctx context.Context, name string) (model.Environment, error) {
	if name == "" {
		return model.Environment{}, model.NewValidationError("environment name must not be empty")
	}
	var env model.Environment
	err := p.pool.QueryRow(ctx,
		`INSERT INTO environments (name) VALUES ($1)
		 RETURNING id, name, created_at, updated_at`, name,
	).Scan(&env.ID, &env.Name, &env.CreatedAt, &env.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Environment{}, model.NewConflictError("environment name already exists")
		}
		return model.Environment{}, err
	}
	return env, nil
}

func (p *PostgresStore) GetEnvironment(ctx context.Context, id string) (model.Environment, error) {
	var env model.Environment
	err := p.pool.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at FROM environments WHERE id = $1`, id,
	).Scan(&env.ID, &env.Name, &env.CreatedAt, &env.UpdatedAt)
	if err != nil {
		return model.Environment{}, mapPgError(err, "environment not found")
	}
	return env, nil
}

func (p *PostgresStore) ListEnvironments(ctx context.Context) ([]model.Environment, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, name, created_at, updated_at FROM environments ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Environment
	for rows.Next() {
		var e model.Environment
		if err := rows.Scan(&e.ID, &e.Name, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *PostgresStore) DeleteEnvironment(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM environments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError("environment not found")
	}
	return nil
}

// --- Audiences ---

func (p *PostgresStore) CreateAudience(ctx context.Context, envID, name string, rules []model.TargetingRule) (model.Audience, error) {
	if name == "" {
		return model.Audience{}, model.NewValidationError("audience name must not be empty")
	}
	rulesJSON, err := json.Marshal(rules)
	if err != nil {
		return model.Audience{}, err
	}
	var a model.Audience
	err = p.pool.QueryRow(ctx,
		`INSERT INTO audiences (environment_id, name, rules) VALUES ($1, $2, $3)
		 RETURNING id, environment_id, name, rules, created_at, updated_at`,
		envID, name, rulesJSON,
	).Scan(&a.ID, &a.EnvironmentID, &a.Name, jsonScanner{&a.Rules}, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return model.Audience{}, model.NewNotFoundError("environment not found")
		}
		return model.Audience{}, err
	}
	return a, nil
}

func (p *PostgresStore) GetAudience(ctx context.Context, id string) (model.Audience, error) {
	var a model.Audience
	err := p.pool.QueryRow(ctx,
		`SELECT id, environment_id, name, rules, created_at, updated_at FROM audiences WHERE id = $1`, id,
	).Scan(&a.ID, &a.EnvironmentID, &a.Name, jsonScanner{&a.Rules}, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return model.Audience{}, mapPgError(err, "audience not found")
	}
	return a, nil
}

func (p *PostgresStore) ListAudiences(ctx context.Context, envID string, page, pageSize int) (Page[model.Audience], error) {
	page, pageSize = normalizePage(page, pageSize)

	var total int
	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM audiences WHERE environment_id = $1`, envID).Scan(&total); err != nil {
		return Page[model.Audience]{}, err
	}

	rows, err := p.pool.Query(ctx,
		`SELECT id, environment_id, name, rules, created_at, updated_at FROM audiences
		 WHERE environment_id = $1 ORDER BY created_at LIMIT $2 OFFSET $3`,
		envID, pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return Page[model.Audience]{}, err
	}
	defer rows.Close()

	var items []model.Audience
	for rows.Next() {
		var a model.Audience
		if err := rows.Scan(&a.ID, &a.EnvironmentID, &a.Name, jsonScanner{&a.Rules}, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return Page[model.Audience]{}, err
		}
		items = append(items, a)
	}
	if items == nil {
		items = []model.Audience{}
	}
	return Page[model.Audience]{Items: items, Total: total}, rows.Err()
}

func (p *PostgresStore) UpdateAudience(ctx context.Context, id, name string, rules []model.TargetingRule) (model.Audience, error) {
	rulesJSON, err := json.Marshal(rules)
	if err != nil {
		return model.Audience{}, err
	}
	var a model.Audience
	err = p.pool.QueryRow(ctx,
		`UPDATE audiences SET
		   name = CASE WHEN $2 = '' THEN name ELSE $2 END,
		   rules = $3,
		   updated_at = now()
		 WHERE id = $1
		 RETURNING id, environment_id, name, rules, created_at, updated_at`,
		id, name, rulesJSON,
	).Scan(&a.ID, &a.EnvironmentID, &a.Name, jsonScanner{&a.Rules}, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return model.Audience{}, mapPgError(err, "audience not found")
	}
	return a, nil
}

// DeleteAudience relies on the experiments.audience_id FK's ON DELETE SET
// NULL to detach any referencing experiment - including a RUNNING one -
// rather than blocking the delete.
func (p *PostgresStore) DeleteAudience(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM audiences WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError("audience not found")
	}
	return nil
}

// --- Experiments ---

func (p *PostgresStore) CreateExperiment(ctx context.Context, envID, key, name, description string, audienceID *string, targetingRules []model.TargetingRule) (model.Experiment, error) {
	if key == "" {
		return model.Experiment{}, model.NewValidationError("experiment key must not be empty")
	}
	if audienceID != nil {
		aud, err := p.GetAudience(ctx, *audienceID)
		if err != nil {
			return model.Experiment{}, err
		}
		if aud.EnvironmentID != envID {
			return model.Experiment{}, model.NewCrossEnvironmentError("audience belongs to a different environment")
		}
	}

	rulesJSON, err := json.Marshal(targetingRules)
	if err != nil {
		return model.Experiment{}, err
	}
	salt := newID()

	var exp model.Experiment
	err = p.pool.QueryRow(ctx,
		`INSERT INTO experiments (environment_id, key, name, description, salt, status, audience_id, targeting_rules)
		 VALUES ($1, $2, $3, $4, $5, 'DRAFT', $6, $7)
		 RETURNING id, environment_id, key, name, description, salt, status, audience_id, targeting_rules, created_at, updated_at`,
		envID, key, name, description, salt, audienceID, rulesJSON,
	).Scan(&exp.ID, &exp.EnvironmentID, &exp.Key, &exp.Name, &exp.Description, &exp.Salt,
		&exp.Status, &exp.AudienceID, jsonScanner{&exp.TargetingRules}, &exp.CreatedAt, &exp.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Experiment{}, model.NewConflictError("experiment key already exists in this environment")
		}
		if isForeignKeyViolation(err) {
			return model.Experiment{}, model.NewNotFoundError("environment not found")
		}
		return model.Experiment{}, err
	}
	return p.hydrateExperiment(ctx, exp)
}

func (p *PostgresStore) GetExperiment(ctx context.Context, id string) (model.Experiment, error) {
	var exp model.Experiment
	err := p.pool.QueryRow(ctx,
		`SELECT id, environment_id, key, name, description, salt, status, audience_id, targeting_rules, created_at, updated_at
		 FROM experiments WHERE id = $1`, id,
	).Scan(&exp.ID, &exp.EnvironmentID, &exp.Key, &exp.Name, &exp.Description, &exp.Salt,
		&exp.Status, &exp.AudienceID, jsonScanner{&exp.TargetingRules}, &exp.CreatedAt, &exp.UpdatedAt)
	if err != nil {
		return model.Experiment{}, mapPgError(err, "experiment not found")
	}
	return p.hydrateExperiment(ctx, exp)
}

func (p *PostgresStore) ListExperiments(ctx context.Context, filter ExperimentFilter) (Page[model.Experiment], error) {
	page, pageSize := normalizePage(filter.Page, filter.PageSize)

	countQuery := `SELECT count(*) FROM experiments WHERE environment_id = $1`
	args := []any{filter.EnvironmentID}
	if filter.Status != nil {
		countQuery += ` AND status = $2`
		args = append(args, string(*filter.Status))
	}
	var total int
	if err := p.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return Page[model.Experiment]{}, err
	}

	listQuery := `SELECT id, environment_id, key, name, description, salt, status, audience_id, targeting_rules, created_at, updated_at
	              FROM experiments WHERE environment_id = $1`
	listArgs := []any{filter.EnvironmentID}
	if filter.Status != nil {
		listQuery += ` AND status = $2`
		listArgs = append(listArgs, string(*filter.Status))
	}
	listQuery += fmt.Sprintf(` ORDER BY created_at LIMIT $%d OFFSET $%d`, len(listArgs)+1, len(listArgs)+2)
	listArgs = append(listArgs, pageSize, (page-1)*pageSize)

	rows, err := p.pool.Query(ctx, listQuery, listArgs...)
	if err != nil {
		return Page[model.Experiment]{}, err
	}
	defer rows.Close()

	var items []model.Experiment
	for rows.Next() {
		var e model.Experiment
		if err := rows.Scan(&e.ID, &e.EnvironmentID, &e.Key, &e.Name, &e.Description, &e.Salt,
			&e.Status, &e.AudienceID, jsonScanner{&e.TargetingRules}, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return Page[model.Experiment]{}, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return Page[model.Experiment]{}, err
	}

	for i := range items {
		hydrated, err := p.hydrateExperiment(ctx, items[i])
		if err != nil {
			return Page[model.Experiment]{}, err
		}
		items[i] = hydrated
	}
	if items == nil {
		items = []model.Experiment{}
	}
	return Page[model.Experiment]{Items: items, Total: total}, nil
}

func (p *PostgresStore) UpdateExperiment(ctx context.Context, id, name, description string, audienceID *string, targetingRules []model.TargetingRule) (model.Experiment, error) {
	exp, err := p.GetExperiment(ctx, id)
	if err != nil {
		return model.Experiment{}, err
	}
	if audienceID != nil {
		aud, err := p.GetAudience(ctx, *audienceID)
		if err != nil {
			return model.Experiment{}, err
		}
		if aud.EnvironmentID != exp.EnvironmentID {
			return model.Experiment{}, model.NewCrossEnvironmentError("audience belongs to a different environment")
		}
	}
	rulesJSON, err := json.Marshal(targetingRules)
	if err != nil {
		return model.Experiment{}, err
	}
	if name == "" {
		name = exp.Name
	}
	var updated model.Experiment
	err = p.pool.QueryRow(ctx,
		`UPDATE experiments SET name = $2, description = $3, audience_id = $4, targeting_rules = $5, updated_at = now()
		 WHERE id = $1
		 RETURNING id, environment_id, key, name, description, salt, status, audience_id, targeting_rules, created_at, updated_at`,
		id, name, description, audienceID, rulesJSON,
	).Scan(&updated.ID, &updated.EnvironmentID, &updated.Key, &updated.Name, &updated.Description, &updated.Salt,
		&updated.Status, &updated.AudienceID, jsonScanner{&updated.TargetingRules}, &updated.CreatedAt, &updated.UpdatedAt)
	if err != nil {
		return model.Experiment{}, mapPgError(err, "experiment not found")
	}
	return p.hydrateExperiment(ctx, updated)
}

func (p *PostgresStore) UpdateExperimentStatus(ctx context.Context, id string, to model.Status) (model.Experiment, error) {
	exp, err := p.GetExperiment(ctx, id)
	if err != nil {
		return model.Experiment{}, err
	}
	if !model.CanTransition(exp.Status, to) {
		return model.Experiment{}, model.NewIllegalTransitionError("illegal status transition from " + string(exp.Status) + " to " + string(to))
	}
	_, err = p.pool.Exec(ctx, `UPDATE experiments SET status = $2, updated_at = now() WHERE id = $1`, id, string(to))
	if err != nil {
		return model.Experiment{}, err
	}
	exp.Status = to
	return exp, nil
}

func (p *PostgresStore) DeleteExperiment(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM experiments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError("experiment not found")
	}
	return nil
}

func (p *PostgresStore) ReplaceVariants(ctx context.Context, experimentID string, variants []VariantInput) (model.Experiment, error) {
	if err := validateVariantInputs(variants); err != nil {
		return model.Experiment{}, err
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return model.Experiment{}, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT id FROM experiments WHERE id = $1 FOR UPDATE`, experimentID); err != nil {
		return model.Experiment{}, mapPgError(err, "experiment not found")
	}

	newKeys := make(map[string]bool, len(variants))
	for _, v := range variants {
		newKeys[v.Key] = true
	}
	rows, err := tx.Query(ctx, `SELECT v.key FROM allocations a JOIN variants v ON v.id = a.variant_id WHERE a.experiment_id = $1`, experimentID)
	if err != nil {
		return model.Experiment{}, err
	}
	var referencedKeys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			rows.Close()
			return model.Experiment{}, err
		}
		referencedKeys = append(referencedKeys, k)
	}
	rows.Close()
	for _, k := range referencedKeys {
		if !newKeys[k] {
			return model.Experiment{}, model.NewConflictError("cannot remove variant referenced by an existing allocation")
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM variants WHERE experiment_id = $1`, experimentID); err != nil {
		return model.Experiment{}, err
	}
	for _, v := range variants {
		payloadJSON, err := json.Marshal(v.Payload)
		if err != nil {
			return model.Experiment{}, err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO variants (experiment_id, key, name, payload) VALUES ($1, $2, $3, $4)`,
			experimentID, v.Key, v.Name, payloadJSON,
		); err != nil {
			return model.Experiment{}, err
		}
	}
	if _, err := tx.Exec(ctx, `UPDATE experiments SET updated_at = now() WHERE id = $1`, experimentID); err != nil {
		return model.Experiment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Experiment{}, err
	}
	return p.GetExperiment(ctx, experimentID)
}

func (p *PostgresStore) ReplaceAllocations(ctx context.Context, experimentID string, allocations []AllocationInput) (model.Experiment, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return model.Experiment{}, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT id FROM experiments WHERE id = $1 FOR UPDATE`, experimentID); err != nil {
		return model.Experiment{}, mapPgError(err, "experiment not found")
	}

	variantRows, err := tx.Query(ctx, `SELECT id, key FROM variants WHERE experiment_id = $1`, experimentID)
	if err != nil {
		return model.Experiment{}, err
	}
	variantIDByKey := make(map[string]string)
	for variantRows.Next() {
		var id, key string
		if err := variantRows.Scan(&id, &key); err != nil {
			variantRows.Close()
			return model.Experiment{}, err
		}
		variantIDByKey[key] = id
	}
	variantRows.Close()

	variantKeys := make(map[string]bool, len(variantIDByKey))
	for k := range variantIDByKey {
		variantKeys[k] = true
	}
	if err := validateAllocationInputs(allocations, variantKeys); err != nil {
		return model.Experiment{}, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM allocations WHERE experiment_id = $1`, experimentID); err != nil {
		return model.Experiment{}, err
	}
	for _, a := range allocations {
		if _, err := tx.Exec(ctx,
			`INSERT INTO allocations (experiment_id, variant_id, range_start, range_end) VALUES ($1, $2, $3, $4)`,
			experimentID, variantIDByKey[a.VariantKey], a.RangeStart, a.RangeEnd,
		); err != nil {
			return model.Experiment{}, err
		}
	}
	if _, err := tx.Exec(ctx, `UPDATE experiments SET updated_at = now() WHERE id = $1`, experimentID); err != nil {
		return model.Experiment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Experiment{}, err
	}
	return p.GetExperiment(ctx, experimentID)
}

func (p *PostgresStore) ListRunningExperiments(ctx context.Context, envID string) ([]model.Experiment, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, environment_id, key, name, description, salt, status, audience_id, targeting_rules, created_at, updated_at
		 FROM experiments WHERE environment_id = $1 AND status = 'RUNNING' ORDER BY created_at`, envID,
	)
	if err != nil {
		return nil, err
	}
	var out []model.Experiment
	for rows.Next() {
		var e model.Experiment
		if err := rows.Scan(&e.ID, &e.EnvironmentID, &e.Key, &e.Name, &e.Description, &e.Salt,
			&e.Status, &e.AudienceID, jsonScanner{&e.TargetingRules}, &e.CreatedAt, &e.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		hydrated, err := p.hydrateExperiment(ctx, out[i])
		if err != nil {
			return nil, err
		}
		out[i] = hydrated
	}
	return out, nil
}

// RecordConfigVersion serializes concurrent publishes for one environment
// behind a row lock on the environments table, so the next version number
// is always computed and inserted atomically.
func (p *PostgresStore) RecordConfigVersion(ctx context.Context, envID string, snapshot []byte) (model.ConfigVersion, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return model.ConfigVersion{}, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT id FROM environments WHERE id = $1 FOR UPDATE`, envID); err != nil {
		return model.ConfigVersion{}, mapPgError(err, "environment not found")
	}

	var next int
	err = tx.QueryRow(ctx, `SELECT coalesce(max(version), 0) + 1 FROM config_versions WHERE environment_id = $1`, envID).Scan(&next)
	if err != nil {
		return model.ConfigVersion{}, err
	}

	var cv model.ConfigVersion
	err = tx.QueryRow(ctx,
		`INSERT INTO config_versions (environment_id, version, snapshot) VALUES ($1, $2, $3)
		 RETURNING id, environment_id, version, snapshot, created_at`,
		envID, next, snapshot,
	).Scan(&cv.ID, &cv.EnvironmentID, &cv.Version, &cv.Snapshot, &cv.CreatedAt)
	if err != nil {
		return model.ConfigVersion{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.ConfigVersion{}, err
	}
	return cv, nil
}

func (p *PostgresStore) GetLatestConfigVersion(ctx context.Context, envID string) (model.ConfigVersion, error) {
	var cv model.ConfigVersion
	err := p.pool.QueryRow(ctx,
		`SELECT id, environment_id, version, snapshot, created_at FROM config_versions
		 WHERE environment_id = $1 ORDER BY version DESC LIMIT 1`, envID,
	).Scan(&cv.ID, &cv.EnvironmentID, &cv.Version, &cv.Snapshot, &cv.CreatedAt)
	if err != nil {
		return model.ConfigVersion{}, mapPgError(err, "no config version published for this environment")
	}
	return cv, nil
}

// hydrateExperiment loads an experiment's variants and allocations.
func (p *PostgresStore) hydrateExperiment(ctx context.Context, exp model.Experiment) (model.Experiment, error) {
	vrows, err := p.pool.Query(ctx, `SELECT id, key, name, payload FROM variants WHERE experiment_id = $1`, exp.ID)
	if err != nil {
		return model.Experiment{}, err
	}
	var variants []model.Variant
	for vrows.Next() {
		var v model.Variant
		var payload []byte
		if err := vrows.Scan(&v.ID, &v.Key, &v.Name, &payload); err != nil {
			vrows.Close()
			return model.Experiment{}, err
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &v.Payload); err != nil {
				vrows.Close()
				return model.Experiment{}, err
			}
		}
		v.ExperimentID = exp.ID
		variants = append(variants, v)
	}
	vrows.Close()
	if err := vrows.Err(); err != nil {
		return model.Experiment{}, err
	}
	exp.Variants = variants

	arows, err := p.pool.Query(ctx, `SELECT id, variant_id, range_start, range_end FROM allocations WHERE experiment_id = $1`, exp.ID)
	if err != nil {
		return model.Experiment{}, err
	}
	var allocations []model.Allocation
	for arows.Next() {
		var a model.Allocation
		if err := arows.Scan(&a.ID, &a.VariantID, &a.RangeStart, &a.RangeEnd); err != nil {
			arows.Close()
			return model.Experiment{}, err
		}
		a.ExperimentID = exp.ID
		allocations = append(allocations, a)
	}
	arows.Close()
	if err := arows.Err(); err != nil {
		return model.Experiment{}, err
	}
	exp.Allocations = allocations

	return exp, nil
}
