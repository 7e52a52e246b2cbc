package store

import (
	"context"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

var roundEventColumns = []string{
	"id", "sequence", "timestamp", "session_id", "mode", "round",
	"problem", "answer", "evaluation", "success", "error_message", "duration_ms",
}

func (r *eventRepo) AppendRound(ctx context.Context, data RoundEventData) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	query, args := entsql.Dialect(dialect.SQLite).
		Insert(tableRounds).
		Columns(roundEventColumns[1:]...).
		Values(
			seqNum,
			time.Now().UnixNano(),
			data.SessionID,
			data.Mode,
			data.Round,
			data.Problem,
			data.Answer,
			data.Evaluation,
			data.Success,
			data.ErrorMessage,
			data.DurationMs,
		).
		Query()

	if err := r.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("save round event: %w", err)
	}
	return nil
}

func (r *eventRepo) QueryRounds(ctx context.Context, opts QueryOpts) ([]RoundRecord, error) {
	sel := entsql.Dialect(dialect.SQLite).
		Select(roundEventColumns...).
		From(entsql.Table(tableRounds)).
		OrderBy(entsql.Desc("sequence"))

	var preds []*entsql.Predicate
	if opts.After > 0 {
		preds = append(preds, entsql.GT("sequence", opts.After))
	}
	if opts.SessionID != "" {
		preds = append(preds, entsql.EQ("session_id", opts.SessionID))
	}
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}

	query, args := sel.Query()
	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("query rounds: %w", err)
	}
	defer rows.Close()

	var out []RoundRecord
	for rows.Next() {
		var (
			rec RoundRecord
			ts  int64
		)
		if err := rows.Scan(
			&rec.ID, &rec.Sequence, &ts, &rec.SessionID, &rec.Mode, &rec.Round,
			&rec.Problem, &rec.Answer, &rec.Evaluation, &rec.Success,
			&rec.ErrorMessage, &rec.DurationMs,
		); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		rec.Timestamp = time.Unix(0, ts)
		out = append(out, rec)
	}
	return out, rows.Err()
}
