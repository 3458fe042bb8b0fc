package postgres

import sq "github.com/Masterminds/squirrel"

// psql builds statements with PostgreSQL dollar placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar) //nolint:gochecknoglobals // immutable builder
