package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/semmidev/oraexport/internal/domain"
)

// Precheck confirms every requested schema or table exists before the job
// starts. It only reads; running it twice gives the same answer.
type Precheck struct {
	sql    domain.SQLExecutor
	logger Logger
}

func NewPrecheck(sql domain.SQLExecutor, logger Logger) *Precheck {
	return &Precheck{sql: sql, logger: logger}
}

// Verify dispatches on the scope. A full scope has nothing to check.
func (p *Precheck) Verify(ctx context.Context, rc domain.RunContext) error {
	switch rc.Scope.Kind() {
	case domain.ScopeSchemas:
		return p.SchemasExist(ctx, rc, rc.Scope.Schemas())
	case domain.ScopeTables:
		return p.TablesExist(ctx, rc, rc.Scope.Tables())
	default:
		return nil
	}
}

func (p *Precheck) SchemasExist(ctx context.Context, rc domain.RunContext, schemas []string) error {
	if len(schemas) == 0 {
		return nil
	}
	names := make([]string, len(schemas))
	for i, s := range schemas {
		if err := domain.ValidateIdentifier("schema", s); err != nil {
			return err
		}
		names[i] = strings.ToUpper(s)
	}

	out, err := query(ctx, p.sql, rc.LocalSession(), fmt.Sprintf(usersInSQL, quoteList(names)))
	if err != nil {
		return fmt.Errorf("look up schemas: %w", err)
	}
	if missing := missingFrom(names, out); len(missing) > 0 {
		return &domain.MissingObjectsError{Kind: "schema", Names: missing}
	}
	p.logger.Infof("[%s] All %d schema(s) present", rc.Target, len(names))
	return nil
}

func (p *Precheck) TablesExist(ctx context.Context, rc domain.RunContext, tables []domain.QualifiedTable) error {
	if len(tables) == 0 {
		return nil
	}
	names := make([]string, len(tables))
	preds := make([]string, len(tables))
	for i, t := range tables {
		if err := domain.ValidateIdentifier("schema", t.Schema); err != nil {
			return err
		}
		if err := domain.ValidateIdentifier("table", t.Table); err != nil {
			return err
		}
		t = domain.QualifiedTable{Schema: strings.ToUpper(t.Schema), Table: strings.ToUpper(t.Table)}
		names[i] = t.String()
		preds[i] = fmt.Sprintf("(owner = '%s' AND table_name = '%s')", t.Schema, t.Table)
	}

	out, err := query(ctx, p.sql, rc.LocalSession(), fmt.Sprintf(tablesMatchSQL, strings.Join(preds, " OR ")))
	if err != nil {
		return fmt.Errorf("look up tables: %w", err)
	}
	if missing := missingFrom(names, out); len(missing) > 0 {
		return &domain.MissingObjectsError{Kind: "table", Names: missing}
	}
	p.logger.Infof("[%s] All %d table(s) present", rc.Target, len(names))
	return nil
}

// missingFrom keeps the requested order so reports are stable.
func missingFrom(requested, found []string) []string {
	have := make(map[string]bool, len(found))
	for _, f := range found {
		have[strings.ToUpper(f)] = true
	}
	var missing []string
	for _, r := range requested {
		if !have[r] {
			missing = append(missing, r)
		}
	}
	return missing
}
