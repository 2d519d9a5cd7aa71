package database

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// SurveyListQuery builds the listing query for one user's surveys in the
// given order. Natural title order is applied by the caller on top of the
// plain title order.
func SurveyListQuery(userID uint, sortOrder string) (string, []interface{}, error) {
	qb := psql.Select("*").
		From("surveys").
		Where(sq.Eq{"user_id": userID})

	switch sortOrder {
	case SortCreatedAsc:
		qb = qb.OrderBy("created_at ASC", "id ASC")
	case SortTitleAsc, SortTitleNat:
		qb = qb.OrderBy("title COLLATE NOCASE ASC", "id ASC")
	case SortCreatedDesc, "":
		qb = qb.OrderBy("created_at DESC", "id DESC")
	default:
		return "", nil, fmt.Errorf("invalid sort order: %s", sortOrder)
	}

	return qb.ToSql()
}
