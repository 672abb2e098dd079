package repository

/* queryBuilder turns a PlateFilter into a parameterized SELECT over plates.
User input only ever reaches the query as a $N parameter.
*/

import (
	"fmt"
	"strings"

	"github.com/Eyemetric/plates_service/internal/models"
)

type queryBuilder struct {
	conditions []string
	args       []any
	phIndex    int //tracks next placeholder index ($1, $2, ...)
}

func newQueryBuilder() *queryBuilder {
	return &queryBuilder{
		conditions: []string{},
		args:       []any{},
		phIndex:    1,
	}
}

// nextPlaceholder generates the next placeholder string (e.g., "$1") and increments the index.
func (qb *queryBuilder) nextPlaceholder() string {
	ph := fmt.Sprintf("$%d", qb.phIndex)
	qb.phIndex++
	return ph
}

// addCondition formats a WHERE fragment such as "user_id = %s" with one
// placeholder per value and records the values as query args.
func (qb *queryBuilder) addCondition(fragment string, values ...any) {
	placeholders := make([]any, len(values))
	for i := range values {
		placeholders[i] = qb.nextPlaceholder()
	}
	qb.conditions = append(qb.conditions, fmt.Sprintf(fragment, placeholders...))
	qb.args = append(qb.args, values...)
}

func (qb *queryBuilder) whereClause() string {
	if len(qb.conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(qb.conditions, " AND ")
}

// escapeLike escapes the ILIKE wildcards so a title filter is always a literal substring.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (qb *queryBuilder) applyFilters(f models.PlateFilter) {
	qb.addCondition("user_id = %s", f.UserID)

	//empty title matches everything, so skip the condition entirely
	if f.Title != "" {
		qb.addCondition("title ILIKE %s", "%"+escapeLike(f.Title)+"%")
	}

	//EXISTS instead of a join so a plate matching several names is returned once
	if len(f.Ingredients) > 0 {
		qb.addCondition("EXISTS (SELECT 1 FROM ingredients i WHERE i.plate_id = plates.id AND i.name = ANY(%s))", f.Ingredients)
	}
}

const plateColumns = "id, title, description, category, price, image, user_id, created_at, updated_at"

const baseSQL = "SELECT " + plateColumns + " FROM plates"

type Query struct {
	Text   string
	Params []any
}

// BuildListQuery constructs the plate listing query for a filter, ordered by title.
func BuildListQuery(f models.PlateFilter) *Query {
	qb := newQueryBuilder()
	qb.applyFilters(f)

	return &Query{
		Text:   baseSQL + qb.whereClause() + " ORDER BY title ASC, id ASC",
		Params: qb.args,
	}
}
